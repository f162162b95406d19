// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"testing"

	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/storage"
	"github.com/stretchr/testify/require"
)

func TestJournalChainsDigests(t *testing.T) {
	require := require.New(t)

	journal, err := NewJournal(log.NoOp(), nil)
	require.NoError(err)

	first := journal.Append(SpotCreated{SpotID: 0})
	second := journal.Append(SpotCreated{SpotID: 1})

	require.Equal(uint64(0), first.Seq)
	require.Equal(uint64(1), second.Seq)
	require.Nil(first.PrevDigest)
	require.Equal(first.Digest, second.PrevDigest)
	require.NotEqual(first.Digest, second.Digest)
	require.NotEmpty(first.ID)

	seq, head := journal.Head()
	require.Equal(uint64(2), seq)
	require.Equal(second.Digest, head)
}

func TestJournalSubscribe(t *testing.T) {
	require := require.New(t)

	journal, err := NewJournal(log.NoOp(), nil)
	require.NoError(err)

	feed, cancel := journal.Subscribe(4)
	defer cancel()

	viewer := ids.GenerateTestAccountID()
	journal.Append(ViewRecorded{ViewID: 0, AdID: 3, Viewer: viewer})

	entry := <-feed
	require.Equal(KindViewRecorded, entry.EventKind)

	payload, ok := entry.Payload.(ViewRecorded)
	require.True(ok)
	require.Equal(uint32(3), payload.AdID)
	require.Equal(viewer, payload.Viewer)
}

func TestJournalDropsWhenSubscriberFull(t *testing.T) {
	require := require.New(t)

	journal, err := NewJournal(log.NoOp(), nil)
	require.NoError(err)

	feed, cancel := journal.Subscribe(1)
	defer cancel()

	journal.Append(SpotCreated{SpotID: 0})
	journal.Append(SpotCreated{SpotID: 1}) // dropped for this subscriber

	entry := <-feed
	require.Equal(uint64(0), entry.Seq)
	require.Empty(feed)

	// The journal itself kept both.
	seq, _ := journal.Head()
	require.Equal(uint64(2), seq)
}

func TestJournalPersistsEntries(t *testing.T) {
	require := require.New(t)

	store := storage.NewMemory()
	defer store.Close()

	journal, err := NewJournal(log.NoOp(), store)
	require.NoError(err)
	entry := journal.Append(AdSubmitted{AdID: 0, Advertiser: ids.GenerateTestAccountID(), SpotID: 0})

	raw, err := store.Get(storage.KeyU64(storage.PrefixJournal, entry.Seq))
	require.NoError(err)
	require.Contains(string(raw), string(KindAdSubmitted))
}

func TestJournalResumesChainAfterReopen(t *testing.T) {
	require := require.New(t)

	store := storage.NewMemory()
	defer store.Close()

	journal, err := NewJournal(log.NoOp(), store)
	require.NoError(err)

	first := journal.Append(SpotCreated{SpotID: 0})
	second := journal.Append(SpotCreated{SpotID: 1})

	firstRaw, err := store.Get(storage.KeyU64(storage.PrefixJournal, 0))
	require.NoError(err)

	reopened, err := NewJournal(log.NoOp(), store)
	require.NoError(err)

	seq, head := reopened.Head()
	require.Equal(uint64(2), seq)
	require.Equal(second.Digest, head)

	third := reopened.Append(AdDeactivated{AdID: 0})
	require.Equal(uint64(2), third.Seq)
	require.Equal(second.Digest, third.PrevDigest)

	// Earlier history is untouched.
	raw, err := store.Get(storage.KeyU64(storage.PrefixJournal, 0))
	require.NoError(err)
	require.Equal(firstRaw, raw)
	require.Contains(string(raw), first.ID)

	seq, head = reopened.Head()
	require.Equal(uint64(3), seq)
	require.Equal(third.Digest, head)
}
