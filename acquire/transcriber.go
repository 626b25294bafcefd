package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Transcriber turns a video or audio URL into a transcript. The audio is
// downloaded locally with yt-dlp, uploaded to the transcription service,
// and the transcript job is polled until it finishes.
type Transcriber struct {
	host   string
	apiKey string
	client *http.Client
	logger *slog.Logger

	// tempDir holds downloaded audio files; each is removed after use.
	tempDir string

	// pollInterval is the wait between transcript status checks.
	pollInterval time.Duration

	// download fetches the audio for url into dest. Defaults to yt-dlp;
	// tests inject their own.
	download func(ctx context.Context, url, dest string) error
}

// TranscriberOption configures a Transcriber.
type TranscriberOption func(*Transcriber)

// WithAPIKey sets the transcription service API key.
func WithAPIKey(key string) TranscriberOption {
	return func(t *Transcriber) {
		t.apiKey = key
	}
}

// WithTempDir sets the directory for downloaded audio files.
func WithTempDir(dir string) TranscriberOption {
	return func(t *Transcriber) {
		t.tempDir = dir
	}
}

// WithPollInterval sets the transcript status polling interval.
func WithPollInterval(interval time.Duration) TranscriberOption {
	return func(t *Transcriber) {
		t.pollInterval = interval
	}
}

// WithDownloadFunc replaces the yt-dlp download step.
func WithDownloadFunc(fn func(ctx context.Context, url, dest string) error) TranscriberOption {
	return func(t *Transcriber) {
		t.download = fn
	}
}

// NewTranscriber creates a Transcriber for the service at host.
func NewTranscriber(host string, opts ...TranscriberOption) *Transcriber {
	t := &Transcriber{
		host:         host,
		client:       &http.Client{Timeout: 2 * time.Minute},
		logger:       slog.Default().With("component", "transcriber"),
		tempDir:      os.TempDir(),
		pollInterval: 3 * time.Second,
		download:     ytdlpDownload,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe downloads the source's audio and returns its transcript.
// The temporary audio file is removed on every exit path.
func (t *Transcriber) Transcribe(ctx context.Context, sourceURL string) (string, error) {
	audioPath := filepath.Join(t.tempDir, uuid.NewString()+".mp3")
	defer os.Remove(audioPath)

	t.logger.Debug("downloading audio", "url", sourceURL)
	if err := t.download(ctx, sourceURL, audioPath); err != nil {
		return "", &AcquisitionError{Op: "download", Err: err}
	}

	uploadURL, err := t.upload(ctx, audioPath)
	if err != nil {
		return "", &AcquisitionError{Op: "upload", Err: err}
	}

	transcriptID, err := t.submit(ctx, uploadURL)
	if err != nil {
		return "", &AcquisitionError{Op: "transcribe", Err: err}
	}

	text, err := t.poll(ctx, transcriptID)
	if err != nil {
		return "", &AcquisitionError{Op: "transcribe", Err: err}
	}

	t.logger.Debug("transcription complete", "url", sourceURL, "length", len(text))
	return text, nil
}

// ytdlpDownload extracts a source's audio track with the yt-dlp binary.
func ytdlpDownload(ctx context.Context, url, dest string) error {
	cmd := exec.CommandContext(ctx, "yt-dlp",
		url,
		"-x",
		"--audio-format", "mp3",
		"--no-keep-video",
		"-f", "bestaudio",
		"-o", dest,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("yt-dlp: %w: %s", err, out)
	}
	return nil
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

// upload sends the audio file to the service and returns its handle.
func (t *Transcriber) upload(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.host+"/v2/upload", file)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload returned status %d", resp.StatusCode)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.UploadURL == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return result.UploadURL, nil
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// submit starts a transcript job for the uploaded audio.
func (t *Transcriber) submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.host+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcript submit returned status %d: %s", resp.StatusCode, body)
	}

	var result transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("transcript response missing id")
	}
	return result.ID, nil
}

// poll checks the transcript job until it completes or errors.
func (t *Transcriber) poll(ctx context.Context, transcriptID string) (string, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.host+"/v2/transcript/"+transcriptID, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", t.apiKey)

		resp, err := t.client.Do(req)
		if err != nil {
			return "", err
		}

		var result transcriptResponse
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return "", err
		}

		switch result.Status {
		case "completed":
			return result.Text, nil
		case "error":
			return "", fmt.Errorf("transcription failed: %s", result.Error)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}
}
