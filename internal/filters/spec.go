package filters

import (
	"net/url"
	"regexp"
	"strings"
)

// TokenKind distinguishes bootstrap tokens.
type TokenKind int

const (
	TokenClear TokenKind = iota
	TokenCriterion
)

// Token is one parsed element of a bootstrap filter spec.
type Token struct {
	Kind      TokenKind
	Criterion Criterion
}

var (
	clearToken     = regexp.MustCompile(`(?i)^clear$`)
	criterionToken = regexp.MustCompile(`(?i)^(\w+):([\w \-\.']+)$`)
)

// ParseSpec splits a location-style filter spec such as
// "#clear/pillars:Cognition/subcategories:Protein" into tokens. Segments that
// match neither grammar are returned in invalid, in order; empty segments are
// ignored.
func ParseSpec(spec string) (tokens []Token, invalid []string) {
	decoded := unescape(strings.TrimPrefix(strings.TrimSpace(spec), "#"))
	if decoded == "" {
		return nil, nil
	}

	for _, segment := range strings.Split(decoded, "/") {
		if segment == "" {
			continue
		}
		if clearToken.MatchString(segment) {
			tokens = append(tokens, Token{Kind: TokenClear})
			continue
		}
		m := criterionToken.FindStringSubmatch(segment)
		if len(m) != 3 {
			invalid = append(invalid, segment)
			continue
		}
		tokens = append(tokens, Token{
			Kind:      TokenCriterion,
			Criterion: Criterion{Property: m[1], Tag: m[2]},
		})
	}
	return tokens, invalid
}

// unescape decodes every well-formed %XX sequence and keeps malformed ones
// as literal text.
func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

// FormatSpec renders a set back into spec form, led by a clear token.
func FormatSpec(set Set) string {
	parts := make([]string, 0, len(set)+1)
	parts = append(parts, "clear")
	for _, c := range set {
		parts = append(parts, url.PathEscape(c.String()))
	}
	return strings.Join(parts, "/")
}
