package extractor

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/local/cardforge/internal/document"
)

// FromURL fetches a web page and extracts it as a document. Network and
// non-2xx failures surface as *FetchError.
func (e *Extractor) FromURL(ctx context.Context, rawURL string) (*document.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &FetchError{URL: rawURL, Err: errInvalidURL}
	}

	timeout := e.fetchTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", "cardforge/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: rawURL, Status: resp.StatusCode}
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, &FetchError{URL: rawURL, Err: errNotHTML}
	}

	title := u.Hostname() + u.Path
	return e.fromHTML(resp.Body, title, "Web Article")
}

var (
	errInvalidURL = urlError("invalid url")
	errNotHTML    = urlError("response is not html")
)

type urlError string

func (e urlError) Error() string { return string(e) }
