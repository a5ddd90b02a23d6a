// Package fetch imports web articles as note content. A colly collector
// retrieves the page under strict limits, readability extracts the article
// text, and goquery plus a plain HTML walk cover pages readability cannot
// handle.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"
)

// ErrNoContent is returned when a page yields no extractable text.
var ErrNoContent = errors.New("no extractable text content")

// ErrUnsupportedContent is returned for responses that are not HTML or text.
var ErrUnsupportedContent = errors.New("unsupported content type")

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxBody     = 2 << 20 // 2 MiB
	defaultParallelism = 2
	defaultUserAgent   = "kennis/1.0 (+https://github.com/koopa0/kennis)"
	maxRedirects       = 5
)

// Article is the extracted page content.
type Article struct {
	URL    string // final URL after redirects
	Title  string
	Byline string
	Text   string
}

// Fetcher retrieves and extracts web articles. All requests share one colly
// backend, so the parallelism and delay limits hold across concurrent calls.
//
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	base   *colly.Collector
	guard  *hostGuard
	logger *slog.Logger
}

type settings struct {
	timeout      time.Duration
	maxBody      int
	userAgent    string
	parallelism  int
	delay        time.Duration
	allowPrivate bool
}

// Option configures a Fetcher.
type Option func(*settings)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxBody overrides the response body cap in bytes.
func WithMaxBody(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithUserAgent overrides the request User-Agent.
func WithUserAgent(ua string) Option {
	return func(s *settings) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithParallelism caps concurrent requests across all domains.
func WithParallelism(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithDelay adds a politeness delay between consecutive requests.
func WithDelay(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithPrivateNetwork allows fetching from loopback, private and link-local
// addresses. Off by default: notes imported through the HTTP API would
// otherwise let callers probe the server's own network.
func WithPrivateNetwork() Option {
	return func(s *settings) {
		s.allowPrivate = true
	}
}

// New creates a Fetcher.
func New(logger *slog.Logger, opts ...Option) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := settings{
		timeout:     defaultTimeout,
		maxBody:     defaultMaxBody,
		userAgent:   defaultUserAgent,
		parallelism: defaultParallelism,
	}
	for _, opt := range opts {
		opt(&s)
	}

	var guard *hostGuard
	if !s.allowPrivate {
		guard = &hostGuard{}
	}

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.MaxBodySize(s.maxBody),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(s.timeout)
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
			return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
		}
		return guard.checkURL(req.URL)
	})
	if t := guard.transport(); t != nil {
		c.WithTransport(t)
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.parallelism,
		Delay:       s.delay,
	}); err != nil {
		return nil, fmt.Errorf("configuring fetch limits: %w", err)
	}

	return &Fetcher{base: c, guard: guard, logger: logger}, nil
}

// Article retrieves the page at rawURL and extracts its article content.
// Only http and https URLs are accepted; redirects are followed up to a
// fixed cap and may not leave those schemes. Targets on loopback, private
// or link-local networks are rejected unless the Fetcher was created with
// WithPrivateNetwork. The response body is truncated at the configured cap
// before extraction.
func (f *Fetcher) Article(ctx context.Context, rawURL string) (Article, error) {
	if err := ctx.Err(); err != nil {
		return Article{}, err
	}

	pageURL, err := parsePageURL(rawURL)
	if err != nil {
		return Article{}, err
	}
	if err := f.guard.checkURL(pageURL); err != nil {
		return Article{}, err
	}

	// Clone shares the limited backend but keeps callbacks per request.
	c := f.base.Clone()

	var (
		body        []byte
		contentType string
		finalURL    *url.URL
		fetchErr    error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
		finalURL = r.Request.URL
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			fetchErr = fmt.Errorf("fetching %s: status %d: %w", rawURL, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("fetching %s: %w", rawURL, err)
	})

	visitErr := c.Visit(pageURL.String())
	// The OnError callback sees the response and builds the richer error.
	if fetchErr != nil {
		return Article{}, fetchErr
	}
	if visitErr != nil {
		return Article{}, fmt.Errorf("fetching %s: %w", rawURL, visitErr)
	}
	if len(body) == 0 {
		return Article{}, fmt.Errorf("fetching %s: %w", rawURL, ErrNoContent)
	}
	if !supportedContentType(contentType) {
		return Article{}, fmt.Errorf("fetching %s: %w: %s", rawURL, ErrUnsupportedContent, contentType)
	}
	if finalURL == nil {
		finalURL = pageURL
	}

	art := f.extract(body, finalURL)
	art.URL = finalURL.String()
	if art.Text == "" {
		return Article{}, fmt.Errorf("extracting %s: %w", rawURL, ErrNoContent)
	}
	if art.Title == "" {
		art.Title = finalURL.Host
	}

	f.logger.Debug("article fetched",
		"url", art.URL,
		"title", art.Title,
		"text_len", len(art.Text))
	return art, nil
}

// extract pulls title, byline, and text out of the page. Readability is
// tried first; pages it cannot handle fall back to the document title and a
// plain text walk.
func (f *Fetcher) extract(body []byte, pageURL *url.URL) Article {
	var art Article

	readable, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		f.logger.Debug("readability extraction failed", "url", pageURL.String(), "error", err)
	} else {
		art.Title = strings.TrimSpace(readable.Title)
		art.Byline = strings.TrimSpace(readable.Byline)
		art.Text = collapseWhitespace(readable.TextContent)
	}

	if art.Text == "" {
		art.Text = fallbackText(body)
	}
	if art.Title == "" {
		art.Title = titleFromHTML(body)
	}
	return art
}

// titleFromHTML reads the document title, preferring <title> over og:title.
func titleFromHTML(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}

// fallbackText walks the parsed HTML and joins visible text nodes.
func fallbackText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return collapseWhitespace(sb.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parsePageURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	return u, nil
}

func supportedContentType(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "html") || strings.HasPrefix(ct, "text/")
}
