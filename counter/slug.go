package counter

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
)

// MaxSlugLen bounds the length of a canonical slug in bytes.
const MaxSlugLen = 2048

// CanonicalSlug maps the different spellings callers use for the same
// page onto one store key: percent-decoded, a single leading slash, no
// trailing slash, no empty or dot segments. Case is preserved.
//
//	"blog/post/"       -> "/blog/post"
//	"%2Fblog%2Fpost"   -> "/blog/post"
//	"//blog//post"     -> "/blog/post"
//	"/"                -> "/"
func CanonicalSlug(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrMissingSlug
	}
	if dec, err := url.PathUnescape(s); err == nil {
		s = strings.TrimSpace(dec)
	}
	if s == "" {
		return "", ErrMissingSlug
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: control character", ErrInvalidSlug)
		}
	}
	s = path.Clean("/" + s)
	if len(s) > MaxSlugLen {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrInvalidSlug, MaxSlugLen)
	}
	return s, nil
}
