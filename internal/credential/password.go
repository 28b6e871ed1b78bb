// Package credential hashes and verifies user passwords.
//
// New digests are argon2id PHC strings. Digests carrying a bcrypt prefix are
// still verified so that imported accounts keep working.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrCorruptCredential is returned when a stored digest cannot be parsed.
	ErrCorruptCredential = errors.New("credential: corrupt password digest")
	// ErrIncompatibleVersion is returned for argon2 digests written by another
	// algorithm version. It matches ErrCorruptCredential under errors.Is.
	ErrIncompatibleVersion = fmt.Errorf("%w: incompatible argon2 version", ErrCorruptCredential)
)

// Params tunes the argon2id key derivation.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams is used by Hash.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Digests asking for more than these limits are treated as corrupt rather
// than evaluated. Memory is in KiB.
const (
	maxMemory     = 1024 * 1024
	maxIterations = 64
	maxKeyLength  = 1024
	maxSaltLength = 1024
)

// Hash derives a salted argon2id digest using DefaultParams.
func Hash(password string) (string, error) {
	return HashWithParams(password, DefaultParams)
}

// HashWithParams derives a salted argon2id digest with explicit parameters.
func HashWithParams(password string, params Params) (string, error) {
	if params.SaltLength == 0 || params.KeyLength == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return "", fmt.Errorf("credential: invalid argon2 parameters %+v", params)
	}

	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("credential: read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Key := base64.RawStdEncoding.EncodeToString(key)

	// $argon2id$v=19$m=...,t=...,p=...$salt$hash
	format := "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	return fmt.Sprintf(format, argon2.Version, params.Memory, params.Iterations, params.Parallelism, b64Salt, b64Key), nil
}

// Verify reports whether password matches digest. A malformed digest yields
// ErrCorruptCredential rather than a plain mismatch.
func Verify(password, digest string) (bool, error) {
	if IsBcrypt(digest) {
		return verifyBcrypt(password, digest)
	}
	return verifyArgon2id(password, digest)
}

// IsBcrypt reports whether digest carries a bcrypt prefix.
func IsBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

func verifyBcrypt(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
	}
}

func verifyArgon2id(password, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, ErrCorruptCredential
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: version: %v", ErrCorruptCredential, err)
	}
	if version != argon2.Version {
		return false, ErrIncompatibleVersion
	}

	var params Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return false, fmt.Errorf("%w: parameters: %v", ErrCorruptCredential, err)
	}
	if params.Iterations == 0 || params.Parallelism == 0 ||
		params.Memory > maxMemory || params.Iterations > maxIterations {
		return false, fmt.Errorf("%w: parameters out of range", ErrCorruptCredential)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", ErrCorruptCredential, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: hash: %v", ErrCorruptCredential, err)
	}
	if len(salt) == 0 || len(key) == 0 {
		return false, fmt.Errorf("%w: empty salt or hash", ErrCorruptCredential)
	}
	if len(salt) > maxSaltLength || len(key) > maxKeyLength {
		return false, fmt.Errorf("%w: salt or hash too long", ErrCorruptCredential)
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}
