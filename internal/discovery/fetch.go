package discovery

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	infraerrors "github.com/jonesrussell/seoscan/infrastructure/errors"
	"github.com/jonesrussell/seoscan/infrastructure/retry"
)

const defaultMaxBodyBytes = 10 << 20

// ErrBodyTooLarge is returned when a response exceeds the fetcher's body cap.
var ErrBodyTooLarge = errors.New("response body too large")

// FetchResponse is a successful (2xx) response.
type FetchResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher retrieves sitemaps, index pages and feeds. Non-2xx responses are errors.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResponse, error)
}

// HTTPFetcher is the default Fetcher. Transient failures are retried.
type HTTPFetcher struct {
	client       *http.Client
	maxBodyBytes int64
	retry        retry.Config
}

// NewHTTPFetcher wraps client. maxBodyBytes <= 0 uses a 10MB cap.
func NewHTTPFetcher(client *http.Client, maxBodyBytes int64, retryCfg retry.Config) *HTTPFetcher {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &HTTPFetcher{client: client, maxBodyBytes: maxBodyBytes, retry: retryCfg}
}

// Fetch GETs url. Gzipped sitemaps (".gz" or a gzip content type) are inflated.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*FetchResponse, error) {
	var out *FetchResponse
	err := retry.Do(ctx, f.retry, func(ctx context.Context) error {
		resp, err := f.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (*FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return nil, httpErr
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &infraerrors.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%s: %w", url, ErrBodyTooLarge)
	}

	contentType := resp.Header.Get("Content-Type")
	if isGzip(url, contentType, body) {
		body, err = gunzip(body, f.maxBodyBytes)
		if err != nil {
			return nil, fmt.Errorf("inflate %s: %w", url, err)
		}
	}

	return &FetchResponse{StatusCode: resp.StatusCode, ContentType: contentType, Body: body}, nil
}

func isGzip(url, contentType string, body []byte) bool {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return false
	}
	return strings.HasSuffix(strings.ToLower(url), ".gz") || strings.Contains(contentType, "gzip")
}

func gunzip(body []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, ErrBodyTooLarge
	}
	return out, nil
}
