package simpleasset

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// IDSize is the length of the fixed-width binary form of an ID.
const IDSize = 16

// ID names an artifact or a source asset independent of its storage location.
// It is an opaque 128-bit value; equality and ordering are bitwise.
type ID struct {
	u uuid.UUID
}

// NilID is the zero ID. It never names an artifact.
var NilID = ID{}

// NewID generates a new globally unique ID.
//
// IDs are UUIDv7 values: a millisecond timestamp followed by random bits, so
// catalogs built independently can be merged without collisions.
func NewID() ID {
	u, err := uuid.NewV7()
	if err != nil {
		// NewV7 fails only when crypto/rand does.
		u = uuid.New()
	}
	return ID{u: u}
}

// IDFromBytes decodes the fixed-width binary form produced by Bytes.
func IDFromBytes(b []byte) (ID, error) {
	if len(b) != IDSize {
		return NilID, fmt.Errorf("invalid id length %d, want %d", len(b), IDSize)
	}
	u, err := uuid.FromBytes(b)
	if err != nil {
		return NilID, fmt.Errorf("invalid id bytes: %w", err)
	}
	return ID{u: u}, nil
}

// ParseID parses the string form produced by String.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID{u: u}, nil
}

// MustParseID is like ParseID but panics on error. Intended for tests and
// constants.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Bytes returns the 16-byte binary form.
func (id ID) Bytes() []byte {
	b := make([]byte, IDSize)
	copy(b, id.u[:])
	return b
}

// String returns the canonical hyphenated hex form.
func (id ID) String() string {
	return id.u.String()
}

// Hex returns the ID as 32 lowercase hex characters without separators.
func (id ID) Hex() string {
	return fmt.Sprintf("%x", id.u[:])
}

// IsZero reports whether id is the NilID.
func (id ID) IsZero() bool {
	return id == NilID
}

// Compare returns -1, 0 or +1 comparing the two IDs bitwise.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id.u[:], other.u[:])
}

// UUID exposes the underlying UUID for persistence layers.
func (id ID) UUID() uuid.UUID {
	return id.u
}

// IDFromUUID wraps a UUID read back from a persistence layer.
func IDFromUUID(u uuid.UUID) ID {
	return ID{u: u}
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (id ID) MarshalBinary() ([]byte, error) {
	return id.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (id *ID) UnmarshalBinary(data []byte) error {
	parsed, err := IDFromBytes(data)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SortIDs sorts ids in ascending bitwise order.
func SortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Compare(ids[j]) < 0
	})
}
