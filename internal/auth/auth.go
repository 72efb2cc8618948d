// Package auth provides optional HTTP Basic Auth for ssfs. Credentials come
// from the config file, with the password stored as an argon2id hash.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const (
	// Argon2id parameters (OWASP recommended).
	argonMemory      = 64 * 1024 // 64 MB
	argonIterations  = 3
	argonParallelism = 4
	argonSaltLen     = 16
	argonKeyLen      = 32

	// maxConcurrentHashes bounds how many argon2 derivations run at once.
	// Each one allocates argonMemory.
	maxConcurrentHashes = 2
)

// ErrInvalidHash is returned for a password hash that is not an argon2id
// PHC string.
var ErrInvalidHash = errors.New("invalid argon2id password hash")

// phc is a decoded argon2id PHC string.
type phc struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// Authenticator checks Basic Auth credentials against a single user. Once a
// username and password pair has been accepted, its keyed digest is kept and
// requests carrying the same pair skip argon2.
type Authenticator struct {
	username string
	hash     phc
	hashing  *semaphore.Weighted

	cacheKey []byte
	mu       sync.Mutex
	verified []byte // digest of the last accepted credentials
}

// New creates an Authenticator for username with the given argon2id hash.
func New(username, passwordHash string) (*Authenticator, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}
	h, err := parseArgon2id(passwordHash)
	if err != nil {
		return nil, err
	}
	key := make([]byte, sha256.Size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate cache key: %w", err)
	}
	return &Authenticator{
		username: username,
		hash:     h,
		hashing:  semaphore.NewWeighted(maxConcurrentHashes),
		cacheKey: key,
	}, nil
}

// Verify reports whether username and password match. It returns false if
// ctx is done while waiting for a free hashing slot.
func (a *Authenticator) Verify(ctx context.Context, username, password string) bool {
	digest := a.digest(username, password)
	if a.cached(digest) {
		return true
	}

	if err := a.hashing.Acquire(ctx, 1); err != nil {
		return false
	}
	defer a.hashing.Release(1)

	// Another request may have verified the same credentials meanwhile.
	if a.cached(digest) {
		return true
	}
	if !a.check(username, password) {
		return false
	}

	a.mu.Lock()
	a.verified = digest
	a.mu.Unlock()
	return true
}

func (a *Authenticator) check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	hash := argon2.IDKey([]byte(password), a.hash.salt, a.hash.iterations, a.hash.memory, a.hash.parallelism, uint32(len(a.hash.hash)))
	passOK := subtle.ConstantTimeCompare(hash, a.hash.hash) == 1
	return userOK && passOK
}

// digest is an HMAC of the credentials under a per-process random key.
func (a *Authenticator) digest(username, password string) []byte {
	mac := hmac.New(sha256.New, a.cacheKey)
	mac.Write(binary.BigEndian.AppendUint32(nil, uint32(len(username))))
	mac.Write([]byte(username))
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

func (a *Authenticator) cached(digest []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verified != nil && hmac.Equal(a.verified, digest)
}

// HashPassword produces a PHC-format string:
// $argon2id$v=19$m=65536,t=3,p=4$<base64-salt>$<base64-hash>
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func parseArgon2id(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	// Expected: ["", "argon2id", "v=19", "m=...,t=...,p=...", salt, hash]
	if len(parts) != 6 || parts[1] != "argon2id" {
		return phc{}, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return phc{}, fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, parts[2])
	}

	var h phc
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.iterations, &h.parallelism); err != nil {
		return phc{}, fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}
	if h.memory == 0 || h.iterations == 0 || h.parallelism == 0 {
		return phc{}, fmt.Errorf("%w: zero parameter", ErrInvalidHash)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return phc{}, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	if h.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return phc{}, fmt.Errorf("%w: hash: %v", ErrInvalidHash, err)
	}
	if len(h.hash) == 0 {
		return phc{}, fmt.Errorf("%w: empty hash", ErrInvalidHash)
	}
	return h, nil
}
