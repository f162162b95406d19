// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sponsorship

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/adledger/pkg/auth"
	"github.com/luxfi/adledger/pkg/events"
	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/storage"
)

func newTestEscrow(t *testing.T, operators ...ids.AccountID) *Escrow {
	t.Helper()
	store := storage.NewMemory()
	journal, err := events.NewJournal(log.NoOp(), nil)
	require.NoError(t, err)
	authority := auth.NewStaticAuthority(operators...)
	return New(store, authority, journal, nil, DefaultParams(), log.NoOp())
}

func TestSponsorshipLifecycle(t *testing.T) {
	require := require.New(t)

	operator := ids.GenerateTestAccountID()
	user := ids.GenerateTestAccountID()
	escrow := newTestEscrow(t, operator)

	requestID, err := escrow.RequestSponsorship(user, 3, 10)
	require.NoError(err)
	require.Equal(uint32(0), requestID)

	pending, ok, err := escrow.Pending(user)
	require.NoError(err)
	require.True(ok)
	require.Equal(requestID, pending)

	// Reimbursing before verification fails.
	require.ErrorIs(escrow.ReimburseFee(user, requestID), ErrNotVerified)

	require.NoError(escrow.VerifyAdView(operator, requestID))

	request, err := escrow.Request(requestID)
	require.NoError(err)
	require.True(request.Verified)
	require.False(request.Sponsored)

	require.NoError(escrow.ReimburseFee(user, requestID))

	request, err = escrow.Request(requestID)
	require.NoError(err)
	require.True(request.Sponsored)

	total, err := escrow.TotalSponsored(3)
	require.NoError(err)
	require.Equal(uint64(10), total)

	// The slot frees up and a second claim cannot double pay.
	_, ok, err = escrow.Pending(user)
	require.NoError(err)
	require.False(ok)
	require.ErrorIs(escrow.ReimburseFee(user, requestID), ErrAlreadySponsored)
}

func TestRequestValidation(t *testing.T) {
	require := require.New(t)

	user := ids.GenerateTestAccountID()
	escrow := newTestEscrow(t)

	_, err := escrow.RequestSponsorship(user, 1, 4)
	require.ErrorIs(err, ErrFeeTooLow)

	_, err = escrow.RequestSponsorship(user, 1, 5)
	require.NoError(err)

	// One outstanding request per user.
	_, err = escrow.RequestSponsorship(user, 2, 5)
	require.ErrorIs(err, ErrPendingExists)
}

func TestVerifyRequiresOperator(t *testing.T) {
	require := require.New(t)

	operator := ids.GenerateTestAccountID()
	user := ids.GenerateTestAccountID()
	escrow := newTestEscrow(t, operator)

	requestID, err := escrow.RequestSponsorship(user, 1, 5)
	require.NoError(err)

	require.ErrorIs(escrow.VerifyAdView(user, requestID), ErrUnauthorized)
	require.NoError(escrow.VerifyAdView(operator, requestID))
}

func TestReimburseRequiresRequester(t *testing.T) {
	require := require.New(t)

	operator := ids.GenerateTestAccountID()
	user := ids.GenerateTestAccountID()
	stranger := ids.GenerateTestAccountID()
	escrow := newTestEscrow(t, operator)

	requestID, err := escrow.RequestSponsorship(user, 1, 5)
	require.NoError(err)
	require.NoError(escrow.VerifyAdView(operator, requestID))

	require.ErrorIs(escrow.ReimburseFee(stranger, requestID), ErrNotRequester)
	require.NoError(escrow.ReimburseFee(user, requestID))
}

func TestCancelSponsorship(t *testing.T) {
	require := require.New(t)

	operator := ids.GenerateTestAccountID()
	user := ids.GenerateTestAccountID()
	stranger := ids.GenerateTestAccountID()
	escrow := newTestEscrow(t, operator)

	requestID, err := escrow.RequestSponsorship(user, 1, 5)
	require.NoError(err)

	require.ErrorIs(escrow.CancelSponsorship(stranger, requestID), ErrNotRequester)

	require.NoError(escrow.CancelSponsorship(user, requestID))

	_, err = escrow.Request(requestID)
	require.ErrorIs(err, ErrRequestNotFound)

	// The slot frees up for a new request.
	nextID, err := escrow.RequestSponsorship(user, 2, 5)
	require.NoError(err)
	require.Equal(uint32(1), nextID)
}

func TestCancelAfterSponsoring(t *testing.T) {
	require := require.New(t)

	operator := ids.GenerateTestAccountID()
	user := ids.GenerateTestAccountID()
	escrow := newTestEscrow(t, operator)

	requestID, err := escrow.RequestSponsorship(user, 1, 5)
	require.NoError(err)
	require.NoError(escrow.VerifyAdView(operator, requestID))
	require.NoError(escrow.ReimburseFee(user, requestID))

	require.ErrorIs(escrow.CancelSponsorship(user, requestID), ErrAlreadySponsored)
}

func TestTotalSponsoredAccumulates(t *testing.T) {
	require := require.New(t)

	operator := ids.GenerateTestAccountID()
	alice := ids.GenerateTestAccountID()
	bob := ids.GenerateTestAccountID()
	escrow := newTestEscrow(t, operator)

	for _, user := range []ids.AccountID{alice, bob} {
		requestID, err := escrow.RequestSponsorship(user, 4, 7)
		require.NoError(err)
		require.NoError(escrow.VerifyAdView(operator, requestID))
		require.NoError(escrow.ReimburseFee(user, requestID))
	}

	total, err := escrow.TotalSponsored(4)
	require.NoError(err)
	require.Equal(uint64(14), total)
}

func TestUnknownRequest(t *testing.T) {
	require := require.New(t)

	operator := ids.GenerateTestAccountID()
	escrow := newTestEscrow(t, operator)

	require.ErrorIs(escrow.VerifyAdView(operator, 5), ErrRequestNotFound)
	_, err := escrow.Request(5)
	require.ErrorIs(err, ErrRequestNotFound)
}
