package guard

import (
	"net/url"
	"strings"
)

// SafeRedirect returns target when it is a same-site absolute path and
// fallback otherwise.
func SafeRedirect(target, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") {
		return fallback
	}
	if strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	for _, r := range target {
		if r < 0x20 || r == 0x7f {
			return fallback
		}
	}
	return target
}
