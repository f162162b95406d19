package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// AccountIDLen is the byte length of an account identifier.
const AccountIDLen = 32

// AccountID identifies a caller of the ledger. The identity layer that
// authenticates callers lives outside this module; by the time an
// AccountID reaches a ledger operation it is already proven.
type AccountID [AccountIDLen]byte

// Empty is the zero account id. It is never a valid caller.
var Empty AccountID

// GenerateTestAccountID creates a random account id for testing.
func GenerateTestAccountID() AccountID {
	var id AccountID
	rand.Read(id[:])
	return id
}

// String returns the hex representation of the account id.
func (id AccountID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the byte representation of the account id.
func (id AccountID) Bytes() []byte {
	return id[:]
}

// IsZero reports whether the id is the empty account id.
func (id AccountID) IsZero() bool {
	return id == Empty
}

// MarshalText implements encoding.TextMarshaler so account ids appear
// as hex strings in JSON-encoded records and events.
func (id AccountID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *AccountID) UnmarshalText(text []byte) error {
	parsed, err := AccountIDFromString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AccountIDFromString creates an AccountID from a hex string.
func AccountIDFromString(s string) (AccountID, error) {
	var id AccountID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != AccountIDLen {
		return id, fmt.Errorf("invalid account id length: expected %d, got %d", AccountIDLen, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}
