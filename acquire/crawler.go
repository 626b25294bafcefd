package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CrawlerClient talks to the crawler service, which renders a page in a
// headless browser and returns the main content as plain text.
type CrawlerClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// scrapeResponse is the crawler's 200 body.
type scrapeResponse struct {
	Content string `json:"content"`
}

// scrapeErrorResponse is the crawler's non-2xx body.
type scrapeErrorResponse struct {
	Error string `json:"error"`
}

// NewCrawlerClient creates a client for the crawler service at baseURL.
// The crawler polls pages until their content stabilizes, so requests can
// take over a minute; the client timeout accounts for that.
func NewCrawlerClient(baseURL string) *CrawlerClient {
	return &CrawlerClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
		logger:  slog.Default().With("component", "crawler-client"),
	}
}

// Scrape fetches the readable text of a page. All failures are transient:
// the crawler may succeed once the page, the network, or the service
// recovers.
func (c *CrawlerClient) Scrape(ctx context.Context, pageURL string) (string, error) {
	endpoint := fmt.Sprintf("%s/scrape?url=%s", c.baseURL, url.QueryEscape(pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &AcquisitionError{Op: "scrape", Err: err}
	}

	c.logger.Debug("scraping page", "url", pageURL)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &AcquisitionError{Op: "scrape", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AcquisitionError{Op: "scrape", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp scrapeErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return "", &AcquisitionError{Op: "scrape", Err: errors.New(errResp.Error)}
		}
		return "", &AcquisitionError{
			Op:  "scrape",
			Err: fmt.Errorf("crawler returned status %d", resp.StatusCode),
		}
	}

	var result scrapeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &AcquisitionError{Op: "scrape", Err: fmt.Errorf("malformed crawler response: %w", err)}
	}

	c.logger.Debug("scraped page", "url", pageURL, "length", len(result.Content))
	return result.Content, nil
}
