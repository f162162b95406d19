// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luxfi/crypto/hashing"

	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/storage"
)

// Entry is one journal record. Digest chains over the previous entry,
// so any rewrite of history is detectable by replaying the chain.
type Entry struct {
	ID         string    `json:"id"`
	Seq        uint64    `json:"seq"`
	Time       time.Time `json:"time"`
	EventKind  Kind      `json:"kind"`
	Payload    Event     `json:"payload"`
	PrevDigest []byte    `json:"prev_digest,omitempty"`
	Digest     []byte    `json:"digest"`
}

// Journal is the append-only, hash-chained event log. Appends are
// serialized; subscribers receive entries on buffered channels and
// slow subscribers drop entries rather than block a transition.
type Journal struct {
	mu      sync.Mutex
	seq     uint64
	prev    []byte
	store   *storage.Store
	subs    map[uint64]chan Entry
	nextSub uint64
	log     log.Logger
}

// NewJournal creates a journal. store may be nil for an in-memory-only
// journal; with a store every entry is also persisted under the
// journal prefix, and reopening over existing entries resumes the
// chain after the persisted head instead of rewriting it.
func NewJournal(logger log.Logger, store *storage.Store) (*Journal, error) {
	j := &Journal{
		store: store,
		subs:  make(map[uint64]chan Entry),
		log:   logger,
	}
	if store != nil {
		if err := j.recoverHead(); err != nil {
			return nil, fmt.Errorf("recovering journal head: %w", err)
		}
	}
	return j, nil
}

// recoverHead restores seq and prev from the highest persisted entry.
func (j *Journal) recoverHead() error {
	it := j.store.NewIteratorWithPrefix([]byte{storage.PrefixJournal})
	defer it.Release()

	var last []byte
	for it.Next() {
		last = append(last[:0], it.Value()...)
	}
	if err := it.Error(); err != nil {
		return err
	}
	if last == nil {
		return nil
	}

	var head struct {
		Seq    uint64 `json:"seq"`
		Digest []byte `json:"digest"`
	}
	if err := json.Unmarshal(last, &head); err != nil {
		return fmt.Errorf("decoding entry: %w", err)
	}

	j.seq = head.Seq + 1
	j.prev = head.Digest

	j.log.Info("journal recovered",
		log.Uint64("entries", j.seq))
	return nil
}

// Append records one event and returns the sealed entry.
func (j *Journal) Append(ev Event) Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := Entry{
		ID:         uuid.NewString(),
		Seq:        j.seq,
		Time:       time.Now().UTC(),
		EventKind:  ev.Kind(),
		Payload:    ev,
		PrevDigest: j.prev,
	}
	entry.Digest = j.seal(entry)

	j.seq++
	j.prev = entry.Digest

	if j.store != nil {
		raw, err := json.Marshal(entry)
		if err == nil {
			err = j.store.Put(storage.KeyU64(storage.PrefixJournal, entry.Seq), raw)
		}
		if err != nil {
			j.log.Error("journal entry not persisted",
				log.Uint64("seq", entry.Seq),
				log.Error(err))
		}
	}

	for _, sub := range j.subs {
		select {
		case sub <- entry:
		default:
			// Subscriber buffer full; the entry is still in the journal.
		}
	}

	j.log.Debug("event appended",
		log.String("kind", string(entry.EventKind)),
		log.Uint64("seq", entry.Seq))

	return entry
}

// Subscribe returns a channel of future entries and a cancel func.
func (j *Journal) Subscribe(buffer int) (<-chan Entry, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := j.nextSub
	j.nextSub++

	ch := make(chan Entry, buffer)
	j.subs[id] = ch

	cancel := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if sub, ok := j.subs[id]; ok {
			delete(j.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Head returns the sequence length and the digest of the latest entry.
func (j *Journal) Head() (uint64, []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.seq, j.prev
}

// seal computes the chained digest of an entry.
func (j *Journal) seal(entry Entry) []byte {
	payload, _ := json.Marshal(entry.Payload)

	data := make([]byte, 0, len(entry.PrevDigest)+8+len(entry.EventKind)+len(payload))
	data = append(data, entry.PrevDigest...)
	data = append(data, storage.EncodeU64(entry.Seq)...)
	data = append(data, entry.EventKind...)
	data = append(data, payload...)

	return hashing.ComputeHash256(data)
}
