// Package apikey generates, hashes and verifies API key secrets. Only the
// prefix and the bcrypt hash ever reach storage; the plaintext secret exists
// once, at generation time, and is handed to the caller.
package apikey

import (
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/bcrypt"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
)

// DefaultTag is the recognizable secret prefix.
const DefaultTag = "karto_"

// DefaultEntropyBytes is the CSPRNG entropy per secret.
const DefaultEntropyBytes = 32

// Secret is freshly generated credential material. Plaintext must never be
// persisted or logged.
type Secret struct {
	Plaintext string
	Prefix    string
}

// Generator produces tagged secrets. The zero value is not usable; use
// NewGenerator.
type Generator struct {
	tag          string
	entropyBytes int
}

// NewGenerator creates a generator with the configured tag and entropy.
// Zero values fall back to the defaults.
func NewGenerator(tag string, entropyBytes int) *Generator {
	if tag == "" {
		tag = DefaultTag
	}
	if entropyBytes <= 0 {
		entropyBytes = DefaultEntropyBytes
	}
	return &Generator{tag: tag, entropyBytes: entropyBytes}
}

// Generate draws entropy from the CSPRNG and returns the plaintext secret
// with its indexable prefix: the tag plus the leading entropy characters,
// domain.PrefixLength characters in total.
func (g *Generator) Generate() (Secret, error) {
	entropy := make([]byte, g.entropyBytes)
	if _, err := rand.Read(entropy); err != nil {
		return Secret{}, fmt.Errorf("read entropy: %w", err)
	}

	plaintext := g.tag + base58.Encode(entropy)
	if len(plaintext) < domain.PrefixLength {
		return Secret{}, fmt.Errorf("secret shorter than prefix length %d", domain.PrefixLength)
	}
	return Secret{
		Plaintext: plaintext,
		Prefix:    plaintext[:domain.PrefixLength],
	}, nil
}

// Tag returns the configured secret tag.
func (g *Generator) Tag() string { return g.tag }

// Hash runs the secret through bcrypt at the default cost.
func Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// Verify compares a candidate secret against a stored hash. bcrypt's
// comparison is constant-time; any failure, including a malformed stored
// hash, yields false.
func Verify(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
