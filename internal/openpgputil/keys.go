// Package openpgputil wraps github.com/ProtonMail/gopenpgp/v2 for the
// two things the walker needs: parsing a provider's ASCII-armoured
// public keys and verifying a detached signature against them.
package openpgputil

import (
	"fmt"
	"strings"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

// PublicKey is a provider-trusted OpenPGP public key, identified by
// fingerprint.
type PublicKey struct {
	Fingerprint string
	Key         *crypto.Key
}

// ParseArmored parses an ASCII-armoured OpenPGP public key and checks
// its fingerprint against expectedFingerprint, if non-empty (§4.A.2,
// load_public_key "verify the fingerprint matches the requested one").
func ParseArmored(armored []byte, expectedFingerprint string) (*PublicKey, error) {
	key, err := crypto.NewKeyFromArmored(string(armored))
	if err != nil {
		return nil, fmt.Errorf("parsing armored key: %w", err)
	}

	fingerprint := strings.ToLower(key.GetFingerprint())
	if expectedFingerprint != "" && !strings.EqualFold(fingerprint, expectedFingerprint) {
		return nil, &FingerprintMismatchError{Requested: expectedFingerprint, Actual: fingerprint}
	}

	return &PublicKey{Fingerprint: fingerprint, Key: key}, nil
}

// FingerprintMismatchError reports a key whose actual fingerprint does
// not match what the caller requested.
type FingerprintMismatchError struct {
	Requested string
	Actual    string
}

func (e *FingerprintMismatchError) Error() string {
	return fmt.Sprintf("key fingerprint mismatch: requested %s, got %s", e.Requested, e.Actual)
}

// Armor serializes the key back to ASCII-armoured form, for the Store
// visitor's metadata/keys/<fingerprint>.txt output.
func (k *PublicKey) Armor() (string, error) {
	armored, err := k.Key.GetArmoredPublicKey()
	if err != nil {
		return "", fmt.Errorf("armoring key %s: %w", k.Fingerprint, err)
	}
	return armored, nil
}

// KeyRing builds a gopenpgp KeyRing from a set of PublicKeys, used to
// verify a detached signature against all configured keys at once.
func KeyRing(keys []*PublicKey) (*crypto.KeyRing, error) {
	ring, err := crypto.NewKeyRing(nil)
	if err != nil {
		return nil, fmt.Errorf("creating key ring: %w", err)
	}
	for _, k := range keys {
		if err := ring.AddKey(k.Key); err != nil {
			return nil, fmt.Errorf("adding key %s to ring: %w", k.Fingerprint, err)
		}
	}
	return ring, nil
}
