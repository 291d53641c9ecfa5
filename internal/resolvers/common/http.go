package common

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
	DefaultTimeout   = 15 * time.Second

	maxBodyBytes  = 8 * 1024 * 1024
	maxErrorBytes = 2048
)

// BrowserHeaders is the header set the scraped sites expect from a desktop
// Chromium browser.
var BrowserHeaders = map[string]string{
	"Accept-Language":           "en-GB,en;q=0.9",
	"Cache-Control":             "no-cache",
	"Pragma":                    "no-cache",
	"Priority":                  "u=0, i",
	"Sec-Ch-Ua":                 `"Chromium";v="142", "Brave";v="142", "Not_A Brand";v="99"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
	"Sec-Fetch-Dest":            "empty",
	"Sec-Fetch-Mode":            "cors",
	"Sec-Fetch-Site":            "same-origin",
	"Sec-Gpc":                   "1",
	"Upgrade-Insecure-Requests": "1",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
}

// NewHTTPClient returns a traced client with the given timeout. Redirects are
// followed as usual.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// WithCookieJar returns a copy of client that keeps cookies in a fresh jar.
// Login flows use it to collect session cookies across redirects.
func WithCookieJar(client *http.Client) (*http.Client, http.CookieJar) {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &http.Client{
		Transport:     client.Transport,
		CheckRedirect: client.CheckRedirect,
		Timeout:       client.Timeout,
		Jar:           jar,
	}, jar
}

// ApplyBrowserHeaders sets BrowserHeaders plus the user agent on req.
// Headers already present on req are kept.
func ApplyBrowserHeaders(req *http.Request, userAgent string) {
	for key, value := range BrowserHeaders {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
}

// StatusError is returned by Fetch for non-2xx responses.
type StatusError struct {
	URL     string
	Status  int
	Snippet string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.Status, e.URL, e.Snippet)
}

// Do sends req and returns the response if its status is 2xx. The caller
// closes the body. On other statuses the body is drained into a StatusError.
func Do(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, &StatusError{
			URL:     req.URL.String(),
			Status:  resp.StatusCode,
			Snippet: CompactSnippet(string(body), 220),
		}
	}
	return resp, nil
}

// Fetch performs req and returns the response with its body read, capped at
// 8 MiB. Bodies declared as a Central European legacy charset are returned
// as UTF-8.
func Fetch(client *http.Client, req *http.Request) (*http.Response, []byte, error) {
	resp, err := Do(client, req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", req.URL.Redacted(), err)
	}
	return resp, DecodeCharset(resp.Header.Get("Content-Type"), body), nil
}

// DecodeCharset converts body to UTF-8 when contentType names windows-1250
// or iso-8859-2. Anything else is returned untouched.
func DecodeCharset(contentType string, body []byte) []byte {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	var codec *charmap.Charmap
	switch strings.ToLower(params["charset"]) {
	case "windows-1250", "cp1250", "x-cp1250":
		codec = charmap.Windows1250
	case "iso-8859-2", "latin2":
		codec = charmap.ISO8859_2
	default:
		return body
	}
	decoded, err := codec.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

// Get is Fetch for a GET request carrying browser headers and extra.
func Get(ctx context.Context, client *http.Client, rawURL, userAgent string, extra http.Header) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	for key, values := range extra {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	ApplyBrowserHeaders(req, userAgent)
	return Fetch(client, req)
}

// PostForm is Fetch for a urlencoded POST carrying browser headers and extra.
func PostForm(ctx context.Context, client *http.Client, rawURL, userAgent string, form url.Values, extra http.Header) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	for key, values := range extra {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ApplyBrowserHeaders(req, userAgent)
	return Fetch(client, req)
}

func CompactSnippet(raw string, maxLen int) string {
	value := CleanHTMLText(raw)
	if value == "" {
		return "empty response body"
	}
	if len(value) <= maxLen {
		return value
	}
	if maxLen < 4 {
		return value[:maxLen]
	}
	return value[:maxLen-3] + "..."
}

// CookieHeader joins cookies into a single Cookie header value.
func CookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		if cookie == nil || cookie.Name == "" {
			continue
		}
		parts = append(parts, cookie.Name+"="+cookie.Value)
	}
	return strings.Join(parts, "; ")
}
