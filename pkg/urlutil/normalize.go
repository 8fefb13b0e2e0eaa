package urlutil

import (
	"net/url"
	"strings"
)

// Normalize canonicalizes a raw URL: lowercase scheme and host, https when no
// scheme is given, "/" for an empty path and no trailing slash on other paths.
// It never fails; input that cannot be parsed is returned with only the scheme fixed.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "http://"):
		s = "http://" + s[len("http://"):]
	case strings.HasPrefix(lower, "https://"):
		s = "https://" + s[len("https://"):]
	default:
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return s
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(strings.ToLower(u.Host))

	path := strings.TrimRight(u.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}
	b.WriteString(path)

	if u.ForceQuery || u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String()
}

// Path returns the lowercased path of a URL, or "" when it cannot be parsed.
func Path(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Path)
}

// SameHost reports whether two URLs share a host, ignoring case and a leading "www.".
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return trimWWW(ua.Hostname()) == trimWWW(ub.Hostname())
}

func trimWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
