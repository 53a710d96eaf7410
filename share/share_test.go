package share

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func genURL() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		host := rapid.StringMatching(`[a-z][a-z0-9]{0,10}(\.[a-z]{2,5}){1,2}`).Draw(t, "host")
		path := rapid.StringMatching(`(/[A-Za-z0-9._~-]{1,12}){0,4}`).Draw(t, "path")
		query := rapid.StringMatching(`(\?[a-z]{1,5}=[A-Za-z0-9]{0,8})?`).Draw(t, "query")
		return "https://" + host + path + query
	})
}

func TestCodec_RoundTrip(t *testing.T) {
	c := &Codec{}
	rapid.Check(t, func(t *rapid.T) {
		u := genURL().Draw(t, "url")
		token, err := c.Encode(u)
		if err != nil {
			t.Fatalf("encode %q: %v", u, err)
		}
		if strings.ContainsAny(token, "+/=") {
			t.Fatalf("token %q is not url safe", token)
		}
		out, err := c.Decode(token)
		if err != nil {
			t.Fatalf("decode %q: %v", token, err)
		}
		if out != u {
			t.Fatalf("expected %q, got %q", u, out)
		}
	})
}

func TestCodec_Tampered(t *testing.T) {
	c := &Codec{}
	rapid.Check(t, func(t *rapid.T) {
		u := genURL().Draw(t, "url")
		token, err := c.Encode(u)
		if err != nil {
			t.Fatal(err)
		}
		i := rapid.IntRange(0, len(token)-1).Draw(t, "pos")
		ch := alphabet[rapid.IntRange(0, len(alphabet)-1).Draw(t, "char")]
		if token[i] == ch {
			ch = alphabet[(strings.IndexByte(alphabet, ch)+1)%len(alphabet)]
		}
		tampered := token[:i] + string(ch) + token[i+1:]
		if _, err := c.Decode(tampered); !errors.Is(err, ErrInvalidLink) {
			t.Fatalf("tampered token %q must be rejected, got %v", tampered, err)
		}
	})
}

func TestCodec_Truncated(t *testing.T) {
	c := &Codec{}
	token, err := c.Encode("https://cdn.example.com/clouds/abc.ply")
	require.NoError(t, err)

	for n := 0; n < len(token); n++ {
		_, err := c.Decode(token[:n])
		assert.ErrorIs(t, err, ErrInvalidLink, "prefix length %d", n)
	}
}

func TestCodec_Decode(t *testing.T) {
	c := &Codec{}
	withSum := func(u string) string {
		tok, err := (&Codec{Schemes: []string{"http", "https", "ftp", "javascript"}}).Encode(u)
		require.NoError(t, err)
		return tok
	}
	valid, err := c.Encode("https://example.com/a.ply?x=1")
	require.NoError(t, err)
	std := strings.NewReplacer("-", "+", "_", "/").Replace(valid)
	for len(std)%4 != 0 {
		std += "="
	}

	testCases := map[string]struct {
		token    string
		expected string
		err      error
	}{
		"Valid": {
			token:    valid,
			expected: "https://example.com/a.ply?x=1",
		},
		"StandardAlphabetPadded": {
			token:    std,
			expected: "https://example.com/a.ply?x=1",
		},
		"Empty": {
			token: "",
			err:   ErrInvalidLink,
		},
		"NotBase64": {
			token: "!!!not-a-token!!!",
			err:   ErrInvalidLink,
		},
		"NoChecksum": {
			token: base64.RawURLEncoding.EncodeToString([]byte("https://example.com/a.ply")),
			err:   ErrInvalidLink,
		},
		"HTTPScheme": {
			token: withSum("http://example.com/a.ply"),
			err:   ErrInvalidLink,
		},
		"JavaScriptScheme": {
			token: withSum("javascript://example.com/%0Aalert(1)"),
			err:   ErrInvalidLink,
		},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			u, err := c.Decode(tt.token)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u)
		})
	}
}

func TestCodec_Encode(t *testing.T) {
	testCases := map[string]struct {
		codec Codec
		url   string
		ok    bool
	}{
		"HTTPSDefault":         {url: "https://example.com/x.ply", ok: true},
		"HTTPRejected":         {url: "http://example.com/x.ply"},
		"Relative":             {url: "/x.ply"},
		"NoHost":               {url: "https:///x.ply"},
		"Garbage":              {url: "https://exa mple.com/%zz"},
		"HTTPAllowed":          {codec: Codec{Schemes: []string{"http", "https"}}, url: "http://localhost:8080/x.ply", ok: true},
		"HostAllowed":          {codec: Codec{AllowedHosts: []string{"cdn.example.com"}}, url: "https://CDN.example.com/x.ply", ok: true},
		"HostRejected":         {codec: Codec{AllowedHosts: []string{"cdn.example.com"}}, url: "https://evil.com/x.ply"},
		"SubdomainAllowed":     {codec: Codec{AllowedHosts: []string{".example.com"}}, url: "https://a.b.example.com/x.ply", ok: true},
		"SubdomainApexAllowed": {codec: Codec{AllowedHosts: []string{".example.com"}}, url: "https://example.com/x.ply", ok: true},
		"SubdomainLookalike":   {codec: Codec{AllowedHosts: []string{".example.com"}}, url: "https://badexample.com/x.ply"},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			_, err := tt.codec.Encode(tt.url)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidLink)
			}
		})
	}
}

func TestViewPath(t *testing.T) {
	p := ViewPath("abc_-1")
	assert.Equal(t, "/view/abc_-1", p)

	tok, ok := TokenFromPath(p)
	assert.True(t, ok)
	assert.Equal(t, "abc_-1", tok)

	for _, bad := range []string{"/view/", "/view/a/b", "/other/abc"} {
		_, ok := TokenFromPath(bad)
		assert.False(t, ok, fmt.Sprintf("path %q", bad))
	}
}
