package keychain

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"
	bolt "go.etcd.io/bbolt"
)

const (
	// fileDirPerm is the permission mode for the state directory.
	fileDirPerm = fs.FileMode(0o700)

	// filePerm is the permission mode for the credential database file.
	filePerm = fs.FileMode(0o600)

	// fileOpenTimeout is the maximum time to wait for the bolt database lock.
	fileOpenTimeout = 5 * time.Second
)

var credentialsBucket = []byte("credentials")

// File stores credentials in a bbolt database, with each value encrypted
// using an age scrypt recipient derived from a passphrase. A value written
// under one passphrase reads as absent under another.
type File struct {
	db         *bolt.DB
	passphrase string
}

// OpenFile opens (creating if needed) the credential database at
// dir/credentials.db. The passphrase must be non-empty.
func OpenFile(dir, passphrase string) (*File, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("file keychain requires a passphrase")
	}

	if err := os.MkdirAll(dir, fileDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	path := filepath.Join(dir, "credentials.db")

	db, err := bolt.Open(path, filePerm, &bolt.Options{Timeout: fileOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening credential db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(credentialsBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing credential db: %w", err)
	}

	return &File{db: db, passphrase: passphrase}, nil
}

// Close closes the database.
func (f *File) Close() error {
	return f.db.Close()
}

// Save encrypts and persists a value, overwriting any previous one.
func (f *File) Save(kind Kind, value string) error {
	sealed, err := f.seal([]byte(value))
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", kind, err)
	}

	err = f.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(credentialsBucket).Put([]byte(kind), sealed)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", kind, err)
	}

	return nil
}

// Get returns the stored value, or false when the kind was never written,
// has been cleared, or cannot be decrypted with the configured passphrase.
func (f *File) Get(kind Kind) (string, bool) {
	var sealed []byte

	_ = f.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(credentialsBucket).Get([]byte(kind))
		if v != nil {
			sealed = append(sealed, v...)
		}

		return nil
	})

	if sealed == nil {
		return "", false
	}

	value, err := f.open(sealed)
	if err != nil {
		return "", false
	}

	return string(value), true
}

// Clear removes both secrets in a single transaction.
func (f *File) Clear() error {
	err := f.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(credentialsBucket)
		for _, kind := range kinds {
			if err := b.Delete([]byte(kind)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}

	return nil
}

// seal encrypts plaintext with an age scrypt recipient.
func (f *File) seal(plaintext []byte) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(f.passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}

	buf := &bytes.Buffer{}

	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("initializing encryption: %w", err)
	}

	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}

	return buf.Bytes(), nil
}

// open decrypts ciphertext with an age scrypt identity.
func (f *File) open(ciphertext []byte) ([]byte, error) {
	identity, err := age.NewScryptIdentity(f.passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("initializing decryption: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted data: %w", err)
	}

	return plaintext, nil
}
