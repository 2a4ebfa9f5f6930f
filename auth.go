package imgapi

import (
	"crypto/subtle"
	"strings"
)

// BearerPrefix is the case-sensitive Authorization scheme prefix.
const BearerPrefix = "Bearer "

// IsAuthorized reports whether an Authorization header value carries the
// expected shared secret as a bearer token.
//
// The header must start with exactly "Bearer " and the remainder must equal
// secret. An empty secret never authorizes.
func IsAuthorized(header, secret string) bool {
	if secret == "" {
		return false
	}

	token, found := strings.CutPrefix(header, BearerPrefix)
	if !found {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
