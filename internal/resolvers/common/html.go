package common

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseDocument parses an HTML payload for selector queries.
func ParseDocument(payload []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Text returns the collapsed text content of the first match of selector
// under sel.
func Text(sel *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(sel.Find(selector).First().Text()), " ")
}

// Attr returns the trimmed attribute of the first match of selector under
// sel. An empty selector reads the attribute of sel itself.
func Attr(sel *goquery.Selection, selector, name string) string {
	target := sel
	if selector != "" {
		target = sel.Find(selector).First()
	}
	value, _ := target.Attr(name)
	return strings.TrimSpace(value)
}

// ErrForeignURL reports a resolver id that points outside the resolver's site.
var ErrForeignURL = errors.New("url outside resolver site")

// SiteURL resolves ref against base like AbsoluteURL but only accepts
// results on the scheme and host of base, without user info. Resolver ids
// arrive from public routes and must never pick the host.
func SiteURL(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	refURL, err := url.Parse(ref)
	if ref == "" || err != nil {
		return "", fmt.Errorf("%w: %q", ErrForeignURL, ref)
	}
	out := baseURL.ResolveReference(refURL)
	if out.User != nil || !strings.EqualFold(out.Scheme, baseURL.Scheme) || !strings.EqualFold(out.Host, baseURL.Host) {
		return "", fmt.Errorf("%w: %q", ErrForeignURL, ref)
	}
	return out.String(), nil
}

// AbsoluteURL resolves ref against base. It returns ref unchanged when either
// fails to parse.
func AbsoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
