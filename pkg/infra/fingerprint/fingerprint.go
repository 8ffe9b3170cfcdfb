package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// hashedHeaders are the request attributes folded into the fingerprint,
// in order. Client-hint headers are included so headless browsers that
// fake a UA string but omit hints still collide with themselves.
var hashedHeaders = []string{
	"User-Agent",
	"Accept-Language",
	"Accept-Encoding",
	"Sec-Ch-Ua",
	"Sec-Ch-Ua-Platform",
	"Sec-Ch-Ua-Mobile",
}

// Compute derives a stable hash over the identifier and header shape.
// Two requests from the same client in the same browser state produce
// the same hash.
func Compute(identifier string, headers map[string][]string) string {
	var b strings.Builder
	b.WriteString(identifier)
	for _, key := range hashedHeaders {
		b.WriteByte('|')
		if values, ok := headers[key]; ok && len(values) > 0 {
			b.WriteString(values[0])
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
