package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/turtacn/sessionguard/pkg/constants"
)

// GenerateSharedSecret returns a fresh random key suitable for NewJWETokenCodec.
func GenerateSharedSecret() ([]byte, error) {
	secret := make([]byte, constants.SharedSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return secret, nil
}

// EncodeSharedSecret renders a secret in the hex form accepted by configuration.
func EncodeSharedSecret(secret []byte) string {
	return hex.EncodeToString(secret)
}
