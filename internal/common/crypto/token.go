package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type TokenGenerator interface {
	NewToken() (string, error)
}

// RandomTokenGenerator returns hex encoded tokens of Size random bytes.
type RandomTokenGenerator struct {
	Size int
}

func NewRandomTokenGenerator(size int) *RandomTokenGenerator {
	return &RandomTokenGenerator{Size: size}
}

func (g *RandomTokenGenerator) NewToken() (string, error) {
	buf := make([]byte, g.Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
