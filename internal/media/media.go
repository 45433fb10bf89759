// Package media classifies and extracts image URLs from Reddit content.
package media

import (
	"html"
	"regexp"
	"strings"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}

var (
	// Hosts that only ever serve images.
	redditImageHosts = []*regexp.Regexp{
		regexp.MustCompile(`i\.redd\.it`),
		regexp.MustCompile(`preview\.redd\.it`),
		regexp.MustCompile(`external-preview\.redd\.it`),
	}

	imgurHosts = []*regexp.Regexp{
		regexp.MustCompile(`i\.imgur\.com`),
		regexp.MustCompile(`imgur\.com/\w+\.(jpg|jpeg|png|gif)`),
	}

	// Bare URL matcher for free text. Reddit markdown keeps URLs intact,
	// so a liberal scheme-to-whitespace match is enough.
	urlPattern = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
)

// IsImageURL reports whether the URL points at an image, either by file
// extension or by pointing at a known image host.
func IsImageURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	lower := strings.ToLower(rawURL)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	for _, re := range redditImageHosts {
		if re.MatchString(rawURL) {
			return true
		}
	}

	for _, re := range imgurHosts {
		if re.MatchString(rawURL) {
			return true
		}
	}

	return false
}

// ExtractURLs returns the image URLs embedded in free text, in order of
// appearance. Non-image URLs are dropped.
func ExtractURLs(text string) []string {
	if text == "" {
		return nil
	}

	var urls []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		if IsImageURL(u) {
			urls = append(urls, u)
		}
	}

	return urls
}

// FullResolution rewrites a gallery preview URL to its full-resolution
// i.redd.it form. Gallery metadata arrives HTML-escaped, so entities are
// decoded first.
func FullResolution(rawURL string) string {
	u := html.UnescapeString(rawURL)

	return strings.Replace(u, "preview.redd.it", "i.redd.it", 1)
}
