// Package share encodes cloud URLs into opaque, URL safe share tokens.
//
// A token is the unpadded base64url encoding of the URL followed by a
// big endian CRC-32 (IEEE) of the URL, so truncated or edited tokens are
// rejected instead of decoding into a different address.
package share

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"net/url"
	"strings"
)

// ErrInvalidLink is returned for every token that does not decode to an
// acceptable URL.
var ErrInvalidLink = errors.New("invalid share link")

const (
	checksumSize = 4
	viewPrefix   = "/view/"
)

// Codec encodes and decodes share tokens.
type Codec struct {
	// Schemes lists accepted URL schemes. Empty means https only.
	Schemes []string `yaml:"schemes" env:"SCHEMES"`
	// AllowedHosts restricts the URL host when not empty. A leading dot
	// matches any subdomain.
	AllowedHosts []string `yaml:"allowed_hosts" env:"ALLOWED_HOSTS"`
}

// Encode returns the share token of rawURL.
func (c *Codec) Encode(rawURL string) (string, error) {
	if err := c.Validate(rawURL); err != nil {
		return "", err
	}
	b := make([]byte, len(rawURL)+checksumSize)
	copy(b, rawURL)
	binary.BigEndian.PutUint32(b[len(rawURL):], crc32.ChecksumIEEE([]byte(rawURL)))
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode returns the URL carried by token. Tokens in the standard base64
// alphabet and padded tokens are accepted as well.
func (c *Codec) Decode(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidLink
	}
	t := strings.TrimRight(token, "=")
	t = strings.NewReplacer("+", "-", "/", "_").Replace(t)
	b, err := base64.RawURLEncoding.Strict().DecodeString(t)
	if err != nil || len(b) <= checksumSize {
		return "", ErrInvalidLink
	}
	raw := b[:len(b)-checksumSize]
	sum := binary.BigEndian.Uint32(b[len(raw):])
	if crc32.ChecksumIEEE(raw) != sum {
		return "", ErrInvalidLink
	}
	u := string(raw)
	if err := c.Validate(u); err != nil {
		return "", err
	}
	return u, nil
}

// Validate reports whether rawURL is an absolute URL with an accepted scheme
// and host.
func (c *Codec) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute", ErrInvalidLink)
	}
	if !c.schemeAllowed(u.Scheme) {
		return fmt.Errorf("%w: scheme %q is not allowed", ErrInvalidLink, u.Scheme)
	}
	if !c.hostAllowed(u.Hostname()) {
		return fmt.Errorf("%w: host %q is not allowed", ErrInvalidLink, u.Hostname())
	}
	return nil
}

func (c *Codec) schemeAllowed(s string) bool {
	if len(c.Schemes) == 0 {
		return s == "https"
	}
	for _, a := range c.Schemes {
		if strings.EqualFold(a, s) {
			return true
		}
	}
	return false
}

func (c *Codec) hostAllowed(h string) bool {
	if len(c.AllowedHosts) == 0 {
		return true
	}
	h = strings.ToLower(h)
	for _, a := range c.AllowedHosts {
		a = strings.ToLower(a)
		if strings.HasPrefix(a, ".") {
			if strings.HasSuffix(h, a) || h == a[1:] {
				return true
			}
			continue
		}
		if h == a {
			return true
		}
	}
	return false
}

// ViewPath returns the viewer path of token.
func ViewPath(token string) string {
	return viewPrefix + token
}

// TokenFromPath extracts the token from a viewer path.
func TokenFromPath(p string) (string, bool) {
	if !strings.HasPrefix(p, viewPrefix) {
		return "", false
	}
	t := strings.TrimPrefix(p, viewPrefix)
	if t == "" || strings.Contains(t, "/") {
		return "", false
	}
	return t, true
}
