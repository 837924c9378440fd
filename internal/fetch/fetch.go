// Package fetch retrieves job postings over HTTP and extracts their main text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	// DefaultTimeout bounds a single page download.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent identifies the extractor to job boards.
	DefaultUserAgent = "Mozilla/5.0 (compatible; SkillExtractor/1.0)"
	// DefaultMaxBodyBytes caps how much of a posting is downloaded.
	DefaultMaxBodyBytes = 5 << 20
)

var (
	// ErrBodyTooLarge is returned when a page exceeds Client.MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrUnsupportedContent is returned for responses that are not HTML or
	// plain text, such as PDFs and images.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// Result is a downloaded page. HTML is always UTF-8.
type Result struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
	FromCache   bool
}

// Fetcher retrieves the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
}

// Error reports a failed download. Status is the HTTP status when the server
// answered, zero otherwise.
type Error struct {
	URL    string
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := "fetch " + e.URL + ": " + e.Op
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether the same request may succeed later: transport
// failures, 429 and 5xx answers.
func (e *Error) Temporary() bool {
	switch {
	case e.Status == http.StatusTooManyRequests || e.Status >= 500:
		return true
	case e.Status != 0:
		return false
	default:
		return e.Err != nil &&
			!errors.Is(e.Err, ErrBodyTooLarge) &&
			!errors.Is(e.Err, ErrUnsupportedContent) &&
			!errors.Is(e.Err, ErrBlockedAddress)
	}
}

// ValidateURL checks that rawURL is an absolute http or https URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &Error{URL: rawURL, Op: "invalid URL", Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &Error{URL: rawURL, Op: "invalid URL: want an absolute http or https URL"}
	}
	return nil
}

// Client is a Fetcher that downloads every page from the network. The zero
// value uses the defaults and only connects to public addresses.
type Client struct {
	// HTTP overrides the transport. Timeout and AllowPrivateNetworks are
	// ignored when it is set.
	HTTP         *http.Client
	Timeout      time.Duration
	UserAgent    string
	Header       http.Header
	MaxBodyBytes int64
	// AllowPrivateNetworks permits loopback, private and link-local targets.
	// Leave it unset for anything reachable by untrusted users.
	AllowPrivateNetworks bool

	once   sync.Once
	client *http.Client
}

// NewClient returns a Client with default limits.
func NewClient() *Client {
	return &Client{Timeout: DefaultTimeout, UserAgent: DefaultUserAgent, MaxBodyBytes: DefaultMaxBodyBytes}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	c.once.Do(func() {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.client = &http.Client{Timeout: timeout}
		if !c.AllowPrivateNetworks {
			c.client.Transport = publicOnlyTransport()
		}
	})
	return c.client
}

// Fetch implements Fetcher. Non-200 answers return the Result together with
// an *Error so callers can inspect the page.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Op: "build request", Err: err}
	}
	for key, values := range c.Header {
		req.Header[key] = values
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Op: "request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	if !textual(contentType) {
		if resp.StatusCode != http.StatusOK {
			return nil, &Error{URL: rawURL, Op: "unexpected status", Status: resp.StatusCode}
		}
		return nil, &Error{URL: rawURL, Op: "read body", Err: fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)}
	}

	body, err := c.readBody(resp.Body, contentType)
	if err != nil {
		return nil, &Error{URL: rawURL, Op: "read body", Err: err}
	}

	result := &Result{URL: rawURL, HTML: body, ContentType: contentType, StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return result, &Error{URL: rawURL, Op: "unexpected status", Status: resp.StatusCode}
	}
	return result, nil
}

// readBody reads at most MaxBodyBytes and decodes the declared or sniffed
// charset to UTF-8.
func (c *Client) readBody(r io.Reader, contentType string) (string, error) {
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(raw)) > limit {
		return "", fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}

	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return string(raw), nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(decoded), nil
}

// textual reports whether a Content-Type can hold a job description. A
// missing header is accepted and left to sniffing.
func textual(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	}
	return false
}
