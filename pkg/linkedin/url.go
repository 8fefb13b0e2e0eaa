package linkedin

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

var ErrInvalidURL = eris.New("invalid LinkedIn profile URL")

var profileIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,100}$`)

// ExtractProfileID returns the public identifier from a /in/<id> profile URL.
// The scheme is optional and query strings are ignored.
func ExtractProfileID(profileURL string) (string, error) {
	raw := strings.TrimSpace(profileURL)
	if raw == "" {
		return "", eris.Wrap(ErrInvalidURL, "LinkedIn URL cannot be empty")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(ErrInvalidURL, "failed to parse %q: %v", profileURL, err)
	}
	if !strings.Contains(strings.ToLower(u.Host), "linkedin.com") {
		return "", eris.Wrap(ErrInvalidURL, "URL must be from linkedin.com domain")
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 || parts[0] != "in" {
		return "", eris.Wrap(ErrInvalidURL, "URL must contain '/in/' followed by profile identifier")
	}
	if !profileIDPattern.MatchString(parts[1]) {
		return "", eris.Wrapf(ErrInvalidURL, "invalid profile ID format: %s", parts[1])
	}
	return parts[1], nil
}

func IsValidURL(profileURL string) bool {
	_, err := ExtractProfileID(profileURL)
	return err == nil
}

// NormalizeURL rewrites a profile URL to https://www.linkedin.com/in/<id>.
func NormalizeURL(profileURL string) (string, error) {
	id, err := ExtractProfileID(profileURL)
	if err != nil {
		return "", err
	}
	return "https://www.linkedin.com/in/" + id, nil
}
