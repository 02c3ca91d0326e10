package sharing

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"

	"gorm.io/gorm"
)

const (
	keyAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyLength      = 8
	maxKeyAttempts = 10
)

var keyPattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// ErrKeyExhausted is returned when no unique key could be produced after
// the maximum number of attempts. Callers may retry the whole request.
var ErrKeyExhausted = conflictErr(ReasonKeyExhausted, "could not generate a unique share key")

// GenerateKey produces a random 8-character key over [A-Z0-9].
func GenerateKey() (string, error) {
	buf := make([]byte, keyLength)
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = keyAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ValidateKey checks the key format only; existence is a store concern.
func ValidateKey(code string) bool {
	return keyPattern.MatchString(code)
}

// KeyGenerator issues share keys against a Store.
type KeyGenerator struct{}

// NewKeyGenerator creates a KeyGenerator.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// IssueFor returns the resource's share key, generating and persisting a
// new one when the resource has none. Issuing is idempotent: an existing
// key is returned unchanged, never rotated.
//
// The pre-check plus insert is a check-then-act sequence; the unique
// constraint on resources.share_key is the authority, and a duplicate-key
// violation from a concurrent issuer is recovered by retrying with a
// fresh candidate.
func (g *KeyGenerator) IssueFor(ctx context.Context, st *Store, res *Resource) (key string, reused bool, err error) {
	if res.ShareKey != nil && *res.ShareKey != "" {
		return *res.ShareKey, true, nil
	}

	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		candidate, err := GenerateKey()
		if err != nil {
			return "", false, storeErr("generate share key", err)
		}

		inUse, err := st.KeyInUse(ctx, candidate)
		if err != nil {
			return "", false, err
		}
		if inUse {
			continue
		}

		res.ShareKey = &candidate
		if err := st.SaveResource(ctx, res); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				res.ShareKey = nil
				continue
			}
			return "", false, storeErr("persist share key", err)
		}
		return candidate, false, nil
	}

	return "", false, ErrKeyExhausted
}
