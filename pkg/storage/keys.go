// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/adledger/pkg/ids"
)

// Key-space map. Every persisted collection owns exactly one prefix;
// keeping them in one place rules out cross-component collisions.
const (
	PrefixProfile        byte = 0x01 // advertiser account id -> profile
	PrefixMember         byte = 0x02 // advertiser account id -> legacy membership flag
	PrefixSpot           byte = 0x03 // spot id -> ad spot
	PrefixAd             byte = 0x04 // ad id -> ad record
	PrefixView           byte = 0x05 // view id -> view record
	PrefixUserView       byte = 0x06 // (viewer, ad id) -> seen flag
	PrefixAdMetrics      byte = 0x07 // ad id -> aggregate metrics
	PrefixClicks         byte = 0x08 // ad id -> click count
	PrefixRequest        byte = 0x09 // request id -> sponsorship request
	PrefixPending        byte = 0x0a // user account id -> pending request id
	PrefixTotalSponsored byte = 0x0b // ad id -> total sponsored fees
	PrefixCounter        byte = 0x0c // counter name byte -> next id
	PrefixJournal        byte = 0x0d // event sequence -> journal entry
)

// Counter name bytes under PrefixCounter.
const (
	CounterSpotID    byte = 0x01
	CounterAdID      byte = 0x02
	CounterViewID    byte = 0x03
	CounterRequestID byte = 0x04
)

// KeyU32 builds a key for a u32-addressed collection.
func KeyU32(prefix byte, id uint32) []byte {
	key := make([]byte, 5)
	key[0] = prefix
	binary.BigEndian.PutUint32(key[1:], id)
	return key
}

// KeyU64 builds a key for a u64-addressed collection.
func KeyU64(prefix byte, id uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], id)
	return key
}

// KeyAccount builds a key for an account-addressed collection.
func KeyAccount(prefix byte, account ids.AccountID) []byte {
	key := make([]byte, 1+ids.AccountIDLen)
	key[0] = prefix
	copy(key[1:], account[:])
	return key
}

// KeyAccountU32 builds a compound (account, u32) key, used by the
// per-viewer dedup flags.
func KeyAccountU32(prefix byte, account ids.AccountID, id uint32) []byte {
	key := make([]byte, 1+ids.AccountIDLen+4)
	key[0] = prefix
	copy(key[1:], account[:])
	binary.BigEndian.PutUint32(key[1+ids.AccountIDLen:], id)
	return key
}

// CounterKey builds the key of a next-id counter.
func CounterKey(name byte) []byte {
	return []byte{PrefixCounter, name}
}

// EncodeU32 encodes a u32 value for storage.
func EncodeU32(v uint32) []byte {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, v)
	return raw
}

// DecodeU32 decodes a stored u32 value. A wrong-length value means the
// store is corrupt, so it is an error rather than a zero.
func DecodeU32(raw []byte) (uint32, error) {
	if len(raw) != 4 {
		return 0, fmt.Errorf("u32 value is %d bytes, want 4", len(raw))
	}
	return binary.BigEndian.Uint32(raw), nil
}

// EncodeU64 encodes a u64 value for storage.
func EncodeU64(v uint64) []byte {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, v)
	return raw
}

// DecodeU64 decodes a stored u64 value.
func DecodeU64(raw []byte) (uint64, error) {
	if len(raw) != 8 {
		return 0, fmt.Errorf("u64 value is %d bytes, want 8", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}
