// Package security holds credential hashing and the password policy.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// ErrInvalidHash is returned for stored hashes not in PHC argon2id form.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// phcFormat is $argon2id$v=<version>$m=<kb>,t=<passes>,p=<lanes>$<salt>$<key>.
const phcFormat = "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"

var b64 = base64.RawStdEncoding

type argonCost struct {
	memoryKB uint32
	passes   uint32
	lanes    uint8
}

// Hasher hashes new passwords at the configured cost and verifies hashes
// produced at any cost.
type Hasher struct {
	cost    argonCost
	saltLen int
	keyLen  uint32
}

func NewHasher(cfg config.PasswordConfig) *Hasher {
	return &Hasher{
		cost: argonCost{
			memoryKB: uint32(bound(cfg.ArgonMemoryKB, 8, 512*1024)),
			passes:   uint32(bound(cfg.ArgonTime, 1, 10)),
			lanes:    uint8(bound(cfg.ArgonParallelism, 1, 255)),
		},
		saltLen: bound(cfg.ArgonSaltLen, 8, 64),
		keyLen:  uint32(bound(cfg.ArgonKeyLen, 16, 64)),
	}
}

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.cost.passes, h.cost.memoryKB, h.cost.lanes, h.keyLen)
	return fmt.Sprintf(phcFormat, argon2.Version, h.cost.memoryKB, h.cost.passes, h.cost.lanes,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify checks password against encoded. stale is true when the hash
// matched but was made at a different cost than h would use now; callers
// rehash on successful login.
func (h *Hasher) Verify(password, encoded string) (match, stale bool, err error) {
	cost, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false, false, err
	}
	computed := argon2.IDKey([]byte(password), salt, cost.passes, cost.memoryKB, cost.lanes, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, computed) != 1 {
		return false, false, nil
	}
	stale = cost != h.cost || len(salt) != h.saltLen || uint32(len(key)) != h.keyLen
	return true, stale, nil
}

func parsePHC(encoded string) (argonCost, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	var cost argonCost
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &cost.memoryKB, &cost.passes, &cost.lanes); err != nil {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	if cost.memoryKB == 0 || cost.passes == 0 || cost.lanes == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	return cost, salt, key, nil
}

func bound(value, lo, hi int) int {
	return max(lo, min(value, hi))
}

// MinPasswordLength is the shortest password accepted on register and change.
const MinPasswordLength = 8

// ErrWeakPassword is returned by ValidatePassword.
var ErrWeakPassword = fmt.Errorf("password must be at least %d characters and mix letters and digits", MinPasswordLength)

// ValidatePassword enforces the storefront password policy.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	var letter, digit bool
	for _, r := range password {
		letter = letter || unicode.IsLetter(r)
		digit = digit || unicode.IsDigit(r)
	}
	if !letter || !digit {
		return ErrWeakPassword
	}
	return nil
}
