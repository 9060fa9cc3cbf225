// Package keychain stores the credential pair (access token, refresh
// token) behind a single contract with interchangeable backends: the OS
// keyring, an encrypted file database, or process memory for tests.
package keychain

// Kind names one of the two stored secrets.
type Kind string

const (
	// AccessToken is the short-lived bearer token attached to API calls.
	AccessToken Kind = "access_token"

	// RefreshToken is the longer-lived secret used to mint new access tokens.
	RefreshToken Kind = "refresh_token"
)

// Store persists the credential pair. Implementations must be safe for
// concurrent use.
//
// Get never reports backend failures: a value that cannot be read or
// decrypted is indistinguishable from one that was never written, so the
// second return value is simply false. Clear removes both kinds and is
// idempotent.
type Store interface {
	Save(kind Kind, value string) error
	Get(kind Kind) (string, bool)
	Clear() error
}

// kinds lists every stored secret, for Clear implementations.
var kinds = []Kind{AccessToken, RefreshToken}
