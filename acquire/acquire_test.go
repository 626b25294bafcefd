package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loopwork/cardpile/core"
)

func TestAcquireTextVerbatim(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"should not be called"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	resolver := NewResolver(NewCrawlerClient(server.URL), NewTranscriber(server.URL))

	content, err := resolver.Acquire(context.Background(), core.CardTypeText, "my pasted note")
	if err != nil {
		t.Fatalf("Failed to acquire text: %v", err)
	}
	if content != "my pasted note" {
		t.Fatalf("Expected source verbatim, got %q", content)
	}
	if hits.Load() != 0 {
		t.Fatal("Text acquisition must not touch the network")
	}
}

func TestAcquireEmptySource(t *testing.T) {
	resolver := NewResolver(nil, nil)
	_, err := resolver.Acquire(context.Background(), core.CardTypeText, "")
	if !errors.Is(err, core.ErrEmptySource) {
		t.Fatalf("Expected ErrEmptySource, got %v", err)
	}
}

func TestAcquireUnsupportedTypes(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	resolver := NewResolver(NewCrawlerClient(server.URL), NewTranscriber(server.URL))

	for _, cardType := range []core.CardType{core.CardTypePDF, core.CardTypeSpotify} {
		_, err := resolver.Acquire(context.Background(), cardType, "something")
		if !errors.Is(err, ErrUnsupportedSourceType) {
			t.Fatalf("Expected ErrUnsupportedSourceType for %s, got %v", cardType, err)
		}
	}
	if hits.Load() != 0 {
		t.Fatal("Unsupported types must not touch the network")
	}
}

func TestCrawlerScrapeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scrape" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("url"); got != "https://example.com/post?id=1" {
			t.Errorf("Unexpected url param %q", got)
		}
		json.NewEncoder(w).Encode(scrapeResponse{Content: "the article text"})
	}))
	defer server.Close()

	client := NewCrawlerClient(server.URL)
	content, err := client.Scrape(context.Background(), "https://example.com/post?id=1")
	if err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}
	if content != "the article text" {
		t.Fatalf("Expected article text, got %q", content)
	}
}

func TestCrawlerScrapeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(scrapeErrorResponse{Error: "page did not stabilize"})
	}))
	defer server.Close()

	client := NewCrawlerClient(server.URL)
	_, err := client.Scrape(context.Background(), "https://example.com")

	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("Expected AcquisitionError, got %v", err)
	}
	if acqErr.Err.Error() != "page did not stabilize" {
		t.Fatalf("Expected crawler error body to surface, got %v", acqErr.Err)
	}
}

func TestCrawlerScrapeMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	client := NewCrawlerClient(server.URL)
	_, err := client.Scrape(context.Background(), "https://example.com")

	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("Expected AcquisitionError, got %v", err)
	}
}

func TestTranscribeSuccess(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/upload":
			json.NewEncoder(w).Encode(uploadResponse{UploadURL: "https://cdn.example/audio-1"})
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			if req["audio_url"] != "https://cdn.example/audio-1" {
				t.Errorf("Unexpected audio_url %q", req["audio_url"])
			}
			json.NewEncoder(w).Encode(transcriptResponse{ID: "tr-1", Status: "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/tr-1":
			if polls.Add(1) < 2 {
				json.NewEncoder(w).Encode(transcriptResponse{ID: "tr-1", Status: "processing"})
				return
			}
			json.NewEncoder(w).Encode(transcriptResponse{ID: "tr-1", Status: "completed", Text: "spoken words"})
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	tempDir := t.TempDir()
	transcriber := NewTranscriber(server.URL,
		WithTempDir(tempDir),
		WithPollInterval(time.Millisecond),
		WithDownloadFunc(func(ctx context.Context, url, dest string) error {
			return os.WriteFile(dest, []byte("fake mp3"), 0644)
		}),
	)

	text, err := transcriber.Transcribe(context.Background(), "https://youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Failed to transcribe: %v", err)
	}
	if text != "spoken words" {
		t.Fatalf("Expected transcript, got %q", text)
	}

	assertDirEmpty(t, tempDir)
}

func TestTranscribeFailureCleansUpAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tempDir := t.TempDir()
	transcriber := NewTranscriber(server.URL,
		WithTempDir(tempDir),
		WithPollInterval(time.Millisecond),
		WithDownloadFunc(func(ctx context.Context, url, dest string) error {
			return os.WriteFile(dest, []byte("fake mp3"), 0644)
		}),
	)

	_, err := transcriber.Transcribe(context.Background(), "https://youtube.com/watch?v=abc")
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("Expected AcquisitionError, got %v", err)
	}

	// The downloaded audio file must be gone even on failure
	assertDirEmpty(t, tempDir)
}

func TestTranscribeDownloadError(t *testing.T) {
	transcriber := NewTranscriber("http://unused",
		WithDownloadFunc(func(ctx context.Context, url, dest string) error {
			return errors.New("yt-dlp exploded")
		}),
	)

	_, err := transcriber.Transcribe(context.Background(), "https://youtube.com/watch?v=abc")
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("Expected AcquisitionError, got %v", err)
	}
	if acqErr.Op != "download" {
		t.Fatalf("Expected download op, got %s", acqErr.Op)
	}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}
	for _, e := range entries {
		t.Fatalf("Expected empty temp dir, found %s", filepath.Join(dir, e.Name()))
	}
}
