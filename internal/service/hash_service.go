package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for transfer-PIN hashing. PINs are short, so the work
// factor is deliberately higher than a typical password profile.
const (
	pinHashTime    = 3
	pinHashMemory  = 64 * 1024 // 64MB
	pinHashThreads = 4
	pinHashKeyLen  = 32
	pinHashSaltLen = 16
)

// PinHashService implements ports.HashService using Argon2id.
type PinHashService struct{}

// NewPinHashService creates a new Argon2id transfer-PIN hash service.
func NewPinHashService() *PinHashService {
	return &PinHashService{}
}

// Hash generates an Argon2id hash of the PIN.
// Returns format: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func (s *PinHashService) Hash(pin string) (string, error) {
	salt := make([]byte, pinHashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(pin), salt, pinHashTime, pinHashMemory, pinHashThreads, pinHashKeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		pinHashMemory, pinHashTime, pinHashThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks if a PIN matches the given Argon2id hash in constant time.
func (s *PinHashService) Verify(pin string, encodedHash string) (bool, error) {
	salt, hash, params, err := decodePinHash(encodedHash)
	if err != nil {
		return false, err
	}

	otherHash := argon2.IDKey([]byte(pin), salt, params.time, params.memory, params.threads, params.keyLen)

	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}

type pinHashParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// decodePinHash parses the encoded hash string.
func decodePinHash(encodedHash string) (salt, hash []byte, params pinHashParams, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, params, fmt.Errorf("invalid hash format: expected 6 parts, got %d", len(parts))
	}

	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	_, err = fmt.Sscanf(parts[2], "v=%d", &version)
	if err != nil {
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}

	_, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads)
	if err != nil {
		return nil, nil, params, fmt.Errorf("parsing params: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}

	params.keyLen = uint32(len(hash))

	return salt, hash, params, nil
}
