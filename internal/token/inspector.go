// Package token inspects Budgetan access tokens. Access tokens are compact
// JWTs whose claims carry an expiration; this package reads that expiration
// without verifying the signature. The client only ever sees tokens it was
// handed by the server moments earlier, so a trust-the-issuer decode is
// sufficient.
package token

import (
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// parser tolerates padded base64 segments. The issuing service pads its
// token segments, which strict JWT decoders reject.
var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// ExpirationOf extracts the expiration instant from an access token
// without verifying its signature. The second return value is false when
// the token has the wrong number of segments, an undecodable payload, or
// a missing or non-numeric exp claim. It never returns an error: a token
// that cannot be decoded is simply a token with no known expiration.
func ExpirationOf(accessToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}

	_, _, err := parser.ParseUnverified(strings.TrimSpace(accessToken), claims)
	if err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
