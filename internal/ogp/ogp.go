// Package ogp reads Open Graph metadata from a web page. Admins paste an
// article URL when creating a banner and the title, description and image are
// filled in from the page.
package ogp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html"

	"github.com/sakif/kansenki/internal/apperror"
)

// MaxBodySize caps how much of a page is read.
const MaxBodySize = 2 << 20

const serviceName = "link preview"

// Metadata is what a page says about itself.
type Metadata struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	SiteName    string `json:"siteName,omitempty"`
}

// ErrBlockedAddress is returned when a URL resolves to an address inside
// the server's own network.
var ErrBlockedAddress = errors.New("ogp: address not allowed")

type Fetcher struct {
	http         *http.Client
	allowPrivate bool
	logger       *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// AllowPrivateNetworks lets the fetcher reach loopback and private
// addresses. Tests serving pages from httptest need it.
func AllowPrivateNetworks() Option {
	return func(f *Fetcher) { f.allowPrivate = true }
}

func NewFetcher(timeout time.Duration, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{logger: logger}
	for _, opt := range opts {
		opt(f)
	}

	// checkAddress sees the resolved IP of every dial, redirects included.
	// No HTTP proxy: the dial must go to the target itself.
	dialer := &net.Dialer{Timeout: timeout, Control: f.checkAddress}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	f.http = &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
	return f
}

func (f *Fetcher) checkAddress(network, address string, _ syscall.RawConn) error {
	if f.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || !PublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// PublicIP reports whether ip is routable on the public internet. Loopback,
// private, link-local (cloud metadata lives at 169.254.169.254), multicast
// and unspecified addresses are not.
func PublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}

// Fetch downloads rawURL and extracts its metadata. Only http and https URLs
// are accepted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Metadata, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("ogp: building request: %w", err)
	}
	req.Header.Set("User-Agent", "kansenki-ogp/1.0 (+https://kansenki.app)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.http.Do(req)
	if err != nil {
		f.logger.Warn("ogp fetch failed", slog.String("url", target.String()), slog.String("error", err.Error()))
		return nil, apperror.Upstream(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.Upstream(serviceName, fmt.Errorf("%s returned %d", target.Host, resp.StatusCode))
	}

	// The final URL after redirects is the base for relative image paths.
	meta, err := Parse(io.LimitReader(resp.Body, MaxBodySize), resp.Request.URL)
	if err != nil {
		return nil, apperror.Upstream(serviceName, err)
	}
	return meta, nil
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, apperror.ValidationFailed("url", "url must be an absolute http(s) URL")
	}
	return u, nil
}

// Parse extracts metadata from an HTML document. og:* properties win; the
// <title> element and the plain description meta tag are fallbacks.
func Parse(r io.Reader, base *url.URL) (*Metadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("ogp: parsing html: %w", err)
	}

	var (
		og        = map[string]string{}
		titleText string
		metaDesc  string
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				content := strings.TrimSpace(attr(n, "content"))
				switch {
				case strings.HasPrefix(key, "og:"):
					if _, seen := og[key]; !seen && content != "" {
						og[key] = content
					}
				case key == "description" && metaDesc == "":
					metaDesc = content
				}
			case "title":
				if titleText == "" && n.FirstChild != nil {
					titleText = strings.TrimSpace(n.FirstChild.Data)
				}
			case "body":
				// Metadata lives in <head>.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	meta := &Metadata{
		Title:       firstNonEmpty(og["og:title"], titleText),
		Description: firstNonEmpty(og["og:description"], metaDesc),
		Image:       og["og:image"],
		SiteName:    og["og:site_name"],
	}
	if base != nil {
		meta.URL = base.String()
	}
	if u := og["og:url"]; u != "" {
		meta.URL = resolve(base, u)
	}
	if meta.Image != "" {
		meta.Image = resolve(base, meta.Image)
	}
	return meta, nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
