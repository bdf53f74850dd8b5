package parser

import (
	"net/url"
	"regexp"
	"strings"
)

// URLPattern is the syntax every followed link must match.
var URLPattern = regexp.MustCompile(`^(https?|ftp|file)://[-a-zA-Z0-9+&@/%=~_|!:,.;]*[-a-zA-Z0-9+&@#/%=~_|]`)

var skipExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

// ResolveURL makes href absolute against base. The fragment is kept.
func ResolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}

	relURL, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return baseURL.ResolveReference(relURL).String()
}

func normalizeURL(u *url.URL) string {
	u.RawQuery = ""
	u.Fragment = ""

	if u.Path == "/" {
		u.Path = ""
		u.RawPath = ""
	} else if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = strings.TrimSuffix(u.RawPath, "/")
	}
	return u.String()
}

// NormalizeURLString drops the query, fragment and trailing slash so that
// equivalent links collapse to one visited-set key.
func NormalizeURLString(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	return normalizeURL(u)
}

// HasSkippedExtension reports links to documents and images that are never
// fetched.
func HasSkippedExtension(urlStr string) bool {
	path := strings.ToLower(urlStr)
	if u, err := url.Parse(urlStr); err == nil {
		path = strings.ToLower(u.Path)
	}

	for _, ext := range skipExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// SameOrigin reports whether a and b share scheme and host.
func SameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// Origin returns scheme://host of u.
func Origin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// PathOf returns the page path relative to the host, "/" for the root.
func PathOf(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		return "/"
	}
	return path
}
