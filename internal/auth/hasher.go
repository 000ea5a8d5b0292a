// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty secret.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides one-way hashing and verification of secrets.
// Both login passwords and password reset tokens go through it.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the secret.
	Hash(secret string) (string, error)

	// Verify checks if the secret matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(secret, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash should be re-computed with argon2id.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
// Legacy bcrypt hashes are accepted by Verify.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the secret.
func (h *Argon2idHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptyPassword
	}

	p := phcHash{
		version: argon2.Version,
		memory:  argon2Memory,
		time:    argon2Time,
		threads: argon2Threads,
		salt:    make([]byte, argon2SaltLen),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	p.key = p.derive(secret, argon2KeyLen)
	return p.String(), nil
}

// Verify checks if the secret matches the hash. Legacy bcrypt hashes are
// recognized by their prefix.
func (h *Argon2idHasher) Verify(secret, encodedHash string) (bool, error) {
	if isBcryptHash(encodedHash) {
		return verifyBcrypt(secret, encodedHash)
	}

	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	computed := p.derive(secret, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// NeedsUpgrade reports whether the hash is bcrypt, unreadable, or argon2id
// with parameters other than the current ones.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	p, err := parsePHC(hash)
	if err != nil {
		return true
	}
	return p.memory != argon2Memory || p.time != argon2Time || p.threads != argon2Threads
}

// phcHash is an argon2id hash in PHC string form:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type phcHash struct {
	version int
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (p phcHash) derive(secret string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(secret), p.salt, p.time, p.memory, p.threads, keyLen)
}

func (p phcHash) String() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		p.version, p.memory, p.time, p.threads,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func parsePHC(encoded string) (*phcHash, error) {
	invalid := oops.Code("AUTH_INVALID_HASH")

	fields := strings.Split(strings.TrimPrefix(encoded, "$"), "$")
	if len(fields) != 5 || !strings.HasPrefix(encoded, "$") {
		return nil, invalid.Errorf("invalid hash format")
	}
	algo, version, params, salt, key := fields[0], fields[1], fields[2], fields[3], fields[4]
	if algo != "argon2id" {
		return nil, invalid.Errorf("unsupported hash algorithm: %s", algo)
	}

	var p phcHash
	if _, err := fmt.Sscanf(version, "v=%d", &p.version); err != nil {
		return nil, invalid.Wrap(err)
	}
	if p.version != argon2.Version {
		return nil, invalid.Errorf("unsupported argon2 version %d", p.version)
	}

	var threads uint32
	if _, err := fmt.Sscanf(params, "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads); err != nil {
		return nil, invalid.Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, invalid.Errorf("threads value %d out of range", threads)
	}
	p.threads = uint8(threads)

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(salt); err != nil {
		return nil, invalid.Wrap(err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(key); err != nil {
		return nil, invalid.Wrap(err)
	}
	if len(p.key) == 0 {
		return nil, invalid.Errorf("empty hash key")
	}
	return &p, nil
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func verifyBcrypt(secret, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
}

// Compile-time interface check.
var _ PasswordHasher = (*Argon2idHasher)(nil)
