package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// QueryEscape escapes everything encodeURIComponent does not keep; restore those.
var componentUnescaper = strings.NewReplacer(
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encode is encodeURIComponent with %20 rendered as '+'.
func encode(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// CanonicalQuery is the string both signing and verification hash: every key
// and value URL-encoded, pairs sorted by encoded key, joined with '&', with
// %20 written as '+'.
func CanonicalQuery(params map[string]string) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, pair{encode(k), encode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(p.v)
	}
	return strings.ReplaceAll(b.String(), "%20", "+")
}

// Sign returns the lowercase hex HMAC-SHA512 of the canonical query.
func Sign(secret string, params map[string]string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(CanonicalQuery(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time; hex case is ignored.
func Verify(secret string, params map[string]string, hash string) bool {
	got, err := hex.DecodeString(hash)
	if err != nil || len(got) != sha512.Size {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, params))
	return hmac.Equal(got, want)
}
