package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/systemstart/envsecrets/pkg/api"
	"golang.org/x/crypto/nacl/box"
)

const publicKeySize = 32

// Seal encrypts value for key with an anonymous sealed box, the scheme
// libsodium calls crypto_box_seal.
func Seal(key api.PublicKey, value string) (api.SealedSecret, error) {
	if err := key.Validate(); err != nil {
		return api.SealedSecret{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(key.Key)
	if err != nil {
		return api.SealedSecret{}, fmt.Errorf("decoding public key: %w", err)
	}
	if len(raw) != publicKeySize {
		return api.SealedSecret{}, fmt.Errorf("unexpected public key length %d, want %d", len(raw), publicKeySize)
	}

	var pk [publicKeySize]byte
	copy(pk[:], raw)

	sealed, err := box.SealAnonymous(nil, []byte(value), &pk, rand.Reader)
	if err != nil {
		return api.SealedSecret{}, fmt.Errorf("sealing value: %w", err)
	}

	return api.SealedSecret{
		EncryptedValue: base64.StdEncoding.EncodeToString(sealed),
		KeyID:          key.KeyID,
	}, nil
}
