package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 2
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16

	// Bounds accepted when decoding a stored hash.
	maxArgonTime    uint32 = 16
	maxArgonMemory  uint32 = 1 << 20
	maxArgonThreads uint8  = 16
	minArgonSaltLen        = 8
	minArgonKeyLen         = 16
	maxArgonKeyLen         = 64
)

var ErrMalformedHash = errors.New("invalid password hash format")

func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

func VerifyPassword(encoded, password string) (bool, error) {
	memory, timeCost, threads, salt, expected, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	// #nosec G115 -- decodeHash bounds the key length.
	keyLen := uint32(len(expected))
	actual := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, keyLen)
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// BurnVerify runs one full verification against a throwaway hash. Login calls
// it when no credential exists so unknown emails cost the same as wrong
// passwords.
func BurnVerify(password string) {
	dummyOnce.Do(func() {
		h, err := HashPassword("taskgate-dummy-password")
		if err == nil {
			dummyHash = h
		}
	})
	if dummyHash == "" {
		return
	}
	_, _ = VerifyPassword(dummyHash, password)
}

func decodeHash(encoded string) (memory uint32, timeCost uint32, threads uint8, salt, hash []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return 0, 0, 0, nil, nil, ErrMalformedHash
	}
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: params", ErrMalformedHash)
	}
	if timeCost < 1 || timeCost > maxArgonTime || threads < 1 || threads > maxArgonThreads ||
		memory < 8*uint32(threads) || memory > maxArgonMemory {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: params out of range", ErrMalformedHash)
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: payload", ErrMalformedHash)
	}
	if len(salt) < minArgonSaltLen || len(hash) < minArgonKeyLen || len(hash) > maxArgonKeyLen {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: lengths", ErrMalformedHash)
	}
	return memory, timeCost, threads, salt, hash, nil
}
