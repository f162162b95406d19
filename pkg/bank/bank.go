// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bank is the currency collaborator the ledger escrows
// deposits through. The ledger only ever reserves, unreserves, and
// reads free balances; the monetary system behind those operations is
// not part of this module.
package bank

import (
	"errors"
	"sync"

	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/numeric"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is the balance interface the registry escrows deposits against.
type Ledger interface {
	// FreeBalance returns the spendable balance of an account.
	FreeBalance(account ids.AccountID) uint64

	// Reserve moves amount from an account's free balance into its
	// reserved balance. Fails with ErrInsufficientBalance when the
	// free balance is too low.
	Reserve(account ids.AccountID, amount uint64) error

	// Unreserve releases up to amount back to the free balance and
	// returns how much was actually released.
	Unreserve(account ids.AccountID, amount uint64) uint64

	// Reserved returns the currently reserved balance of an account.
	Reserved(account ids.AccountID) uint64
}

// Memory is an in-process Ledger for single-node hosts and tests.
type Memory struct {
	mu       sync.Mutex
	free     map[ids.AccountID]uint64
	reserved map[ids.AccountID]uint64
	log      log.Logger
}

// NewMemory creates an empty in-memory balance ledger.
func NewMemory(logger log.Logger) *Memory {
	return &Memory{
		free:     make(map[ids.AccountID]uint64),
		reserved: make(map[ids.AccountID]uint64),
		log:      logger,
	}
}

// Mint credits an account's free balance. Host-side funding hook, not
// reachable from ledger transitions.
func (m *Memory) Mint(account ids.AccountID, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.free[account] = numeric.SatAdd64(m.free[account], amount)
}

func (m *Memory) FreeBalance(account ids.AccountID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.free[account]
}

func (m *Memory) Reserved(account ids.AccountID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.reserved[account]
}

func (m *Memory) Reserve(account ids.AccountID, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.free[account] < amount {
		return ErrInsufficientBalance
	}

	m.free[account] -= amount
	m.reserved[account] = numeric.SatAdd64(m.reserved[account], amount)

	m.log.Debug("balance reserved",
		log.Stringer("account", account),
		log.Uint64("amount", amount))

	return nil
}

func (m *Memory) Unreserve(account ids.AccountID, amount uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	released := amount
	if held := m.reserved[account]; held < released {
		released = held
	}

	m.reserved[account] -= released
	m.free[account] = numeric.SatAdd64(m.free[account], released)

	m.log.Debug("balance unreserved",
		log.Stringer("account", account),
		log.Uint64("amount", released))

	return released
}
