// Package credential looks up mailbox secrets the user stored in the OS
// keyring. It never writes to the keyring.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "imap-otp"

var ErrNotFound = errors.New("no secret stored for address")

// Store reads secrets keyed by mailbox address.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the platform keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an existing keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Lookup returns the secret stored under address. Addresses are matched
// case-insensitively.
func (s *Store) Lookup(address string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(address))
	if key == "" {
		return "", fmt.Errorf("address is empty")
	}

	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading keyring: %w", err)
	}
	return string(item.Data), nil
}
