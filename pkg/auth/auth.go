// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auth classifies callers for the privileged ledger
// operations. Authentication itself happens in the host layer; the
// ledger only asks whether a proven account id carries operator
// privilege.
package auth

import "github.com/luxfi/adledger/pkg/ids"

// Authority answers privilege checks for the operator-only transitions
// (ad spot creation, ad view verification).
type Authority interface {
	Privileged(account ids.AccountID) bool
}

// StaticAuthority grants privilege to a fixed set of operator accounts.
type StaticAuthority struct {
	operators map[ids.AccountID]struct{}
}

// NewStaticAuthority creates an authority over the given operators.
func NewStaticAuthority(operators ...ids.AccountID) *StaticAuthority {
	set := make(map[ids.AccountID]struct{}, len(operators))
	for _, op := range operators {
		set[op] = struct{}{}
	}
	return &StaticAuthority{operators: set}
}

func (a *StaticAuthority) Privileged(account ids.AccountID) bool {
	_, ok := a.operators[account]
	return ok
}
