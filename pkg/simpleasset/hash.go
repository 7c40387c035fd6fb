package simpleasset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/zeebo/blake3"
)

// HashAlgorithm names a content digest algorithm.
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashBLAKE3 HashAlgorithm = "blake3"
)

// DefaultHashAlgorithm is used when no algorithm is configured.
const DefaultHashAlgorithm = HashSHA256

// ParseHashAlgorithm validates an algorithm name.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	switch HashAlgorithm(strings.ToLower(name)) {
	case HashSHA256, "":
		return HashSHA256, nil
	case HashBLAKE3:
		return HashBLAKE3, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", name)
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a HashAlgorithm) New() hash.Hash {
	switch a {
	case HashBLAKE3:
		return blake3.New()
	default:
		return sha256.New()
	}
}

// Hash is a content digest in "algorithm:hex" form, e.g. "sha256:9f86d0...".
type Hash string

// HashBytes digests data with the given algorithm.
func HashBytes(alg HashAlgorithm, data []byte) Hash {
	h := alg.New()
	h.Write(data)
	return makeHash(alg, h.Sum(nil))
}

// HashReader digests everything readable from r.
func HashReader(alg HashAlgorithm, r io.Reader) (Hash, int64, error) {
	h := alg.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return makeHash(alg, h.Sum(nil)), n, nil
}

func makeHash(alg HashAlgorithm, sum []byte) Hash {
	return Hash(string(alg) + ":" + hex.EncodeToString(sum))
}

// ParseHash validates the "algorithm:hex" form.
func ParseHash(s string) (Hash, error) {
	alg, digest, ok := strings.Cut(s, ":")
	if !ok {
		return "", fmt.Errorf("invalid hash %q: missing algorithm", s)
	}
	if _, err := ParseHashAlgorithm(alg); err != nil {
		return "", fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if _, err := hex.DecodeString(digest); err != nil || digest == "" {
		return "", fmt.Errorf("invalid hash %q: bad digest", s)
	}
	return Hash(s), nil
}

// Algorithm returns the algorithm part of the hash.
func (h Hash) Algorithm() HashAlgorithm {
	alg, _, _ := strings.Cut(string(h), ":")
	return HashAlgorithm(alg)
}

// Hex returns the digest part of the hash.
func (h Hash) Hex() string {
	_, digest, _ := strings.Cut(string(h), ":")
	return digest
}

// Matches recomputes the digest of data with h's algorithm and compares.
func (h Hash) Matches(data []byte) bool {
	return HashBytes(h.Algorithm(), data) == h
}

func (h Hash) String() string {
	return string(h)
}
