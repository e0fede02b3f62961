package obs

import "strings"

// CanonicalPath collapses identifier path segments so metric label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, prefix := range []string{"/payment/manager/", "/payment/member/", "/payment/paid/"} {
		if rest := strings.TrimPrefix(path, prefix); rest != path {
			if rest != "" && !strings.Contains(rest, "/") {
				return prefix + ":id"
			}
		}
	}
	return path
}
