package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// CursorParam is the query parameter carrying the cursor token.
const CursorParam = "next"

// ErrMalformedNextLink is returned when a next_link is present but no token
// can be extracted from it.
var ErrMalformedNextLink = errors.New("malformed next link")

// NextCursor returns the cursor token for the page following p.
// ok is false when there is no next page, including when the pagination
// block itself is missing (see HasPaginationBlock).
func NextCursor(p Page) (token string, ok bool, err error) {
	if !p.HasPaginationBlock() || p.Meta.Pagination.NextLink == nil {
		return "", false, nil
	}

	link := strings.TrimSpace(*p.Meta.Pagination.NextLink)
	if link == "" {
		return "", false, nil
	}

	token, err = ParseNextLink(link)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// ParseNextLink extracts the opaque token from a next link. A link carrying
// a "next" query parameter yields its value, which keeps base64 padding
// intact; anything else yields the substring after the last '='.
func ParseNextLink(link string) (string, error) {
	if u, err := url.Parse(link); err == nil {
		if values, ok := u.Query()[CursorParam]; ok && len(values) > 0 && values[0] != "" {
			return values[0], nil
		}
	}

	idx := strings.LastIndex(link, "=")
	if idx < 0 {
		return "", fmt.Errorf("%w: no '=' in %q", ErrMalformedNextLink, link)
	}

	token := link[idx+1:]
	if token == "" {
		return "", fmt.Errorf("%w: empty token in %q", ErrMalformedNextLink, link)
	}
	return token, nil
}
