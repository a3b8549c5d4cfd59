package openpgputil

import (
	"fmt"
	"strings"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

// VerifyDetached verifies an ASCII-armoured detached signature over
// data against the given keys, using validationDate as the signature
// verification time (so callers can test with a fixed clock, per
// "options.validation_date" in spec §4.E). Success requires at least
// one of keys to verify the signature.
//
// If keys is empty, verification cannot possibly succeed; callers
// should treat that case as UnknownKey rather than calling this.
func VerifyDetached(keys []*PublicKey, data []byte, armoredSignature string, validationDate int64) error {
	if len(keys) == 0 {
		return fmt.Errorf("no keys configured to verify against")
	}

	sig, err := crypto.NewPGPSignatureFromArmored(armoredSignature)
	if err != nil {
		return fmt.Errorf("parsing armored signature: %w", err)
	}

	ring, err := KeyRing(keys)
	if err != nil {
		return err
	}

	msg := crypto.NewPlainMessage(data)
	if err := ring.VerifyDetached(msg, sig, validationDate); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// PublicKeysFromArmoredBlobs parses a set of ASCII-armoured public key
// blobs, skipping any that fail to parse (recording each failure in the
// returned errs map, keyed by fingerprint) rather than aborting the
// whole batch.
func PublicKeysFromArmoredBlobs(blobs map[string][]byte) (keys []*PublicKey, errs map[string]error) {
	keys = make([]*PublicKey, 0, len(blobs))
	errs = make(map[string]error)
	for fingerprint, blob := range blobs {
		key, err := ParseArmored(blob, fingerprint)
		if err != nil {
			errs[fingerprint] = err
			continue
		}
		keys = append(keys, key)
	}
	return keys, errs
}

// NormalizeFingerprint lowercases and strips whitespace from a
// fingerprint string, matching the convention used for
// metadata/keys/<fingerprint>.txt filenames.
func NormalizeFingerprint(fp string) string {
	return strings.ToLower(strings.TrimSpace(fp))
}
