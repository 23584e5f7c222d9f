package http11

import (
	"strconv"
	"strings"
	"time"
)

// SameSite is the cookie attribute controlling cross-site delivery.
type SameSite uint8

const (
	// SameSiteLax is the default when the configuration leaves the
	// attribute unset, matching current browser norms.
	SameSiteLax SameSite = iota
	SameSiteStrict
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteNone:
		return "None"
	default:
		return "Lax"
	}
}

// ParseSameSite maps a configuration token to a SameSite policy.
// Unrecognised or empty tokens fall back to Lax.
func ParseSameSite(token string) SameSite {
	switch strings.ToLower(token) {
	case "strict":
		return SameSiteStrict
	case "none":
		return SameSiteNone
	default:
		return SameSiteLax
	}
}

// CookieOptions carries the optional Set-Cookie attributes. Zero values
// mean "attribute unset" and are omitted from the rendered header.
type CookieOptions struct {
	HTTPOnly bool
	Secure   bool
	MaxAge   *int64
	Path     string
	Expires  *time.Time
	Domain   string
	SameSite SameSite
	// SameSiteSet distinguishes an explicit Lax from an absent attribute.
	SameSiteSet bool
}

// Cookie is a name/value pair with its attributes, rendered into a
// Set-Cookie header value per RFC 6265 semantics.
type Cookie struct {
	Name    string
	Value   string
	Options CookieOptions
}

// String renders the cookie as a Set-Cookie value:
// name=value; HttpOnly; Secure; Max-Age=N; Path=P; Expires=D; Domain=d; SameSite=S
// with unset attributes omitted.
func (c Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.Options.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if c.Options.Secure {
		b.WriteString("; Secure")
	}
	if c.Options.MaxAge != nil {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.FormatInt(*c.Options.MaxAge, 10))
	}
	if c.Options.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Options.Path)
	}
	if c.Options.Expires != nil {
		b.WriteString("; Expires=")
		b.WriteString(c.Options.Expires.UTC().Format(time.RFC1123))
	}
	if c.Options.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Options.Domain)
	}
	if c.Options.SameSiteSet {
		b.WriteString("; SameSite=")
		b.WriteString(c.Options.SameSite.String())
	}
	return b.String()
}

// CookiePair is one name=value element of a Cookie request header.
type CookiePair struct {
	Name  string
	Value string
}

// ParseCookiePairs splits a Cookie header value into its pairs.
// Elements without '=' and empty elements are skipped.
func ParseCookiePairs(value string) []CookiePair {
	var pairs []CookiePair
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, found := strings.Cut(part, "=")
		if !found || name == "" {
			continue
		}
		pairs = append(pairs, CookiePair{Name: name, Value: val})
	}
	return pairs
}

// CookieFromHeader extracts the named cookie from a Cookie header value.
func CookieFromHeader(headerValue, name string) (string, bool) {
	for _, p := range ParseCookiePairs(headerValue) {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}
