// Package state implements the cookie-verified nonce that binds a login
// redirect round trip to the originating browser. The value travels twice:
// once as a query parameter on the identity provider's return URL and once
// in a short-lived cookie. A callback is trusted only when both copies
// match; the lifetime bound is enforced purely by cookie expiry.
package state

import (
	"github.com/instillct/authbridge/internal/crypto"
)

// nonceBytes gives 384 bits of entropy, hex-encoded to 96 characters.
const nonceBytes = 48

// Issue generates a fresh login state nonce.
func Issue() (string, error) {
	return crypto.GenerateHexNonce(nonceBytes)
}

// Verify reports whether the value carried in the URL matches the value
// stored in the browser cookie. It is false whenever either side is
// missing. No state is mutated; a failed check always has a restart path.
func Verify(urlValue, cookieValue string) bool {
	if urlValue == "" || cookieValue == "" {
		return false
	}
	return crypto.SecureCompare(urlValue, cookieValue)
}
