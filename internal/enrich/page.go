package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shpitdev/leadfinder/internal/httpx"
	"github.com/shpitdev/leadfinder/internal/version"
)

const maxPageBytes = 4 << 20

// Page is the text of a fetched website page plus any contact links it carries.
type Page struct {
	URL         string
	Title       string
	Description string
	Text        string
	MailTo      []string
	Tel         []string
}

// ContactText is the page text with link targets appended, so the text extractors see
// addresses that only appear in href attributes.
func (p Page) ContactText() string {
	parts := []string{p.Description, p.Text}
	parts = append(parts, p.MailTo...)
	parts = append(parts, p.Tel...)
	return strings.Join(parts, "\n")
}

// PageFetcher fetches and parses business websites.
type PageFetcher struct {
	client *http.Client
}

func NewPageFetcher(client *http.Client) *PageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PageFetcher{client: client}
}

// Fetch GETs rawURL, adding https:// when the scheme is missing.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, httpx.NewHTTPError("website", "fetchPage", resp, body)
	}
	return ParsePage(target, io.LimitReader(resp.Body, maxPageBytes))
}

// nonContentSelectors are dropped before taking page text. Footers stay: that is where
// small-business sites usually put their phone and email.
const nonContentSelectors = "script, style, noscript, template, svg"

// ParsePage extracts text and contact links from HTML.
func ParsePage(pageURL string, r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	p := &Page{URL: pageURL}
	p.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		p.Description = strings.TrimSpace(desc)
	} else if og, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		p.Description = strings.TrimSpace(og)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			addr := href[len("mailto:"):]
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if addr, err := url.PathUnescape(addr); err == nil && addr != "" {
				p.MailTo = appendUnique(p.MailTo, addr)
			}
		case strings.HasPrefix(lower, "tel:"):
			if num := strings.TrimSpace(href[len("tel:"):]); num != "" {
				p.Tel = appendUnique(p.Tel, num)
			}
		}
	})

	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = doc.Selection
	}
	body.Find(nonContentSelectors).Remove()
	p.Text = strings.Join(strings.Fields(body.Text()), " ")
	return p, nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("fetch page: empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("fetch page: invalid url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("fetch page: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func appendUnique(in []string, v string) []string {
	for _, x := range in {
		if strings.EqualFold(x, v) {
			return in
		}
	}
	return append(in, v)
}
