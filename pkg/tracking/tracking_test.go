// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tracking

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adledger/pkg/events"
	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store := storage.NewMemory()
	journal, err := events.NewJournal(log.NoOp(), nil)
	require.NoError(t, err)
	return New(store, journal, nil, log.NoOp())
}

func TestRecordViewCountsUniqueViewers(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(t)
	alice := ids.GenerateTestAccountID()
	bob := ids.GenerateTestAccountID()

	id0, err := ledger.RecordView(alice, 7, 100)
	require.NoError(err)
	require.Equal(uint32(0), id0)

	id1, err := ledger.RecordView(alice, 7, 101)
	require.NoError(err)
	require.Equal(uint32(1), id1)

	_, err = ledger.RecordView(bob, 7, 102)
	require.NoError(err)

	m, err := ledger.Metrics(7)
	require.NoError(err)
	require.Equal(uint64(3), m.TotalViews)
	require.Equal(uint64(2), m.UniqueViewers)
	require.Equal(uint64(0), m.TotalClicks)

	record, err := ledger.View(id0)
	require.NoError(err)
	require.Equal(alice, record.Viewer)
	require.Equal(uint32(7), record.AdID)
	require.Equal(uint64(100), record.Timestamp)
	require.False(record.Completed)
}

func TestUniqueViewersArePerAd(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(t)
	viewer := ids.GenerateTestAccountID()

	_, err := ledger.RecordView(viewer, 1, 10)
	require.NoError(err)
	_, err = ledger.RecordView(viewer, 2, 11)
	require.NoError(err)

	m1, err := ledger.Metrics(1)
	require.NoError(err)
	require.Equal(uint64(1), m1.UniqueViewers)

	m2, err := ledger.Metrics(2)
	require.NoError(err)
	require.Equal(uint64(1), m2.UniqueViewers)
}

func TestCompleteViewOnce(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(t)
	viewer := ids.GenerateTestAccountID()
	stranger := ids.GenerateTestAccountID()

	viewID, err := ledger.RecordView(viewer, 3, 50)
	require.NoError(err)

	require.ErrorIs(ledger.CompleteView(stranger, viewID), ErrNotViewer)

	require.NoError(ledger.CompleteView(viewer, viewID))

	record, err := ledger.View(viewID)
	require.NoError(err)
	require.True(record.Completed)

	require.ErrorIs(ledger.CompleteView(viewer, viewID), ErrViewAlreadyCompleted)
}

func TestCompleteUnknownView(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(t)
	require.ErrorIs(ledger.CompleteView(ids.GenerateTestAccountID(), 42), ErrViewNotFound)
}

func TestRecordClickAccumulates(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(t)
	viewer := ids.GenerateTestAccountID()

	require.NoError(ledger.RecordClick(viewer, 9))
	require.NoError(ledger.RecordClick(viewer, 9))

	clicks, err := ledger.Clicks(9)
	require.NoError(err)
	require.Equal(uint64(2), clicks)

	m, err := ledger.Metrics(9)
	require.NoError(err)
	require.Equal(uint64(2), m.TotalClicks)
	require.Equal(uint64(0), m.TotalViews)
}

func TestMetricsZeroForUnseenAd(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(t)

	m, err := ledger.Metrics(99)
	require.NoError(err)
	require.Equal(AdMetrics{}, m)

	clicks, err := ledger.Clicks(99)
	require.NoError(err)
	require.Equal(uint64(0), clicks)
}

func TestBuildReportRates(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(t)
	alice := ids.GenerateTestAccountID()
	bob := ids.GenerateTestAccountID()

	// 4 views from 2 viewers, 1 click.
	_, err := ledger.RecordView(alice, 5, 1)
	require.NoError(err)
	_, err = ledger.RecordView(alice, 5, 2)
	require.NoError(err)
	_, err = ledger.RecordView(bob, 5, 3)
	require.NoError(err)
	_, err = ledger.RecordView(bob, 5, 4)
	require.NoError(err)
	require.NoError(ledger.RecordClick(alice, 5))

	report, err := ledger.BuildReport(5)
	require.NoError(err)
	require.Equal(uint32(5), report.AdID)
	require.True(report.ClickThroughRate.Equal(decimal.NewFromFloat(0.25)),
		"ctr = %s", report.ClickThroughRate)
	require.True(report.RepeatViewRate.Equal(decimal.NewFromFloat(0.5)),
		"repeat rate = %s", report.RepeatViewRate)
}

func TestBuildReportNoViews(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger(t)

	report, err := ledger.BuildReport(8)
	require.NoError(err)
	require.True(report.ClickThroughRate.IsZero())
	require.True(report.RepeatViewRate.IsZero())
}
