package graph

import (
	"net/url"
	"strings"
)

func required(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", Validation("%s is required", field)
	}
	return v, nil
}

func validEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return Validation("email %q is malformed", email)
	}
	return nil
}

// normalizeImageURL trims an optional image reference. Blank means absent.
func normalizeImageURL(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil, nil
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, Validation("imageUrl %q must be an absolute http(s) URL", v)
	}
	return &v, nil
}
