// Package scrape extracts form state from the notify-bot HTML pages.
package scrape

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrTokenNotFound is returned when a page carries no CSRF token under the requested name.
var ErrTokenNotFound = errors.New("csrf token not found")

// ExtractCSRF returns the CSRF token published by a page, looking first at a
// hidden input named name and then at a meta tag of the same name.
func ExtractCSRF(html []byte, name string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return ExtractCSRFFromDocument(doc, name)
}

// ExtractCSRFFromDocument is ExtractCSRF for an already parsed page.
func ExtractCSRFFromDocument(doc *goquery.Document, name string) (string, error) {
	selector := fmt.Sprintf(`input[name=%q]`, name)
	if value, ok := doc.Find(selector).First().Attr("value"); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	selector = fmt.Sprintf(`meta[name=%q]`, name)
	if value, ok := doc.Find(selector).First().Attr("content"); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	return "", fmt.Errorf("%w: %s", ErrTokenNotFound, name)
}
