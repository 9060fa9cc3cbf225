package keychain

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// service is the keyring service name all Budgetan entries live under,
// isolating them from other applications' secrets.
const service = "budgetan"

// Keyring stores credentials in the operating system's secret service
// (Keychain on macOS, Secret Service on Linux, Credential Manager on
// Windows). Each kind is a separate keyring entry.
type Keyring struct{}

// NewKeyring creates a keyring-backed store.
func NewKeyring() *Keyring {
	return &Keyring{}
}

// Save writes a value to the OS keyring, overwriting any previous one.
func (k *Keyring) Save(kind Kind, value string) error {
	if err := keyring.Set(service, string(kind), value); err != nil {
		return fmt.Errorf("writing %s to keyring: %w", kind, err)
	}

	return nil
}

// Get returns the stored value, or false when the keyring has no entry
// for this kind or cannot be read.
func (k *Keyring) Get(kind Kind) (string, bool) {
	v, err := keyring.Get(service, string(kind))
	if err != nil {
		return "", false
	}

	return v, true
}

// Clear deletes both secrets. Entries that were never written are not an
// error.
func (k *Keyring) Clear() error {
	for _, kind := range kinds {
		err := keyring.Delete(service, string(kind))
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("deleting %s from keyring: %w", kind, err)
		}
	}

	return nil
}
