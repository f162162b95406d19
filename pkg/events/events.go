// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events defines the domain events the ledger emits, one per
// successful state transition, and the append-only journal they are
// recorded in. Events are for external observers (indexers, UIs); they
// are not part of queryable ledger state.
package events

import "github.com/luxfi/adledger/pkg/ids"

// Kind names an event type on the wire.
type Kind string

const (
	KindSpotCreated            Kind = "ad_spot_created"
	KindAdvertiserRegistered   Kind = "advertiser_registered"
	KindDepositIncreased       Kind = "deposit_increased"
	KindAdvertiserDeregistered Kind = "advertiser_deregistered"
	KindAdSubmitted            Kind = "ad_submitted"
	KindAdDeactivated          Kind = "ad_deactivated"
	KindViewRecorded           Kind = "ad_view_recorded"
	KindViewCompleted          Kind = "ad_view_completed"
	KindClickRecorded          Kind = "ad_click_recorded"
	KindSponsorshipRequested   Kind = "sponsorship_requested"
	KindAdViewVerified         Kind = "ad_view_verified"
	KindFeeSponsored           Kind = "fee_sponsored"
	KindSponsorshipCancelled   Kind = "sponsorship_cancelled"
)

// Event is a domain event payload.
type Event interface {
	Kind() Kind
}

type SpotCreated struct {
	SpotID uint32 `json:"spot_id"`
}

func (SpotCreated) Kind() Kind { return KindSpotCreated }

type AdvertiserRegistered struct {
	Advertiser ids.AccountID `json:"advertiser"`
	Deposit    uint64        `json:"deposit"`
}

func (AdvertiserRegistered) Kind() Kind { return KindAdvertiserRegistered }

type DepositIncreased struct {
	Advertiser ids.AccountID `json:"advertiser"`
	Amount     uint64        `json:"amount"`
}

func (DepositIncreased) Kind() Kind { return KindDepositIncreased }

type AdvertiserDeregistered struct {
	Advertiser ids.AccountID `json:"advertiser"`
	Refunded   uint64        `json:"refunded"`
}

func (AdvertiserDeregistered) Kind() Kind { return KindAdvertiserDeregistered }

type AdSubmitted struct {
	AdID       uint32        `json:"ad_id"`
	Advertiser ids.AccountID `json:"advertiser"`
	SpotID     uint32        `json:"spot_id"`
}

func (AdSubmitted) Kind() Kind { return KindAdSubmitted }

type AdDeactivated struct {
	AdID uint32 `json:"ad_id"`
}

func (AdDeactivated) Kind() Kind { return KindAdDeactivated }

type ViewRecorded struct {
	ViewID uint32        `json:"view_id"`
	AdID   uint32        `json:"ad_id"`
	Viewer ids.AccountID `json:"viewer"`
}

func (ViewRecorded) Kind() Kind { return KindViewRecorded }

type ViewCompleted struct {
	ViewID uint32        `json:"view_id"`
	AdID   uint32        `json:"ad_id"`
	Viewer ids.AccountID `json:"viewer"`
}

func (ViewCompleted) Kind() Kind { return KindViewCompleted }

type ClickRecorded struct {
	AdID   uint32        `json:"ad_id"`
	Viewer ids.AccountID `json:"viewer"`
}

func (ClickRecorded) Kind() Kind { return KindClickRecorded }

type SponsorshipRequested struct {
	RequestID uint32        `json:"request_id"`
	User      ids.AccountID `json:"user"`
	AdID      uint32        `json:"ad_id"`
	FeeAmount uint64        `json:"fee_amount"`
}

func (SponsorshipRequested) Kind() Kind { return KindSponsorshipRequested }

type AdViewVerified struct {
	RequestID uint32        `json:"request_id"`
	User      ids.AccountID `json:"user"`
}

func (AdViewVerified) Kind() Kind { return KindAdViewVerified }

type FeeSponsored struct {
	RequestID uint32        `json:"request_id"`
	User      ids.AccountID `json:"user"`
	Amount    uint64        `json:"amount"`
}

func (FeeSponsored) Kind() Kind { return KindFeeSponsored }

type SponsorshipCancelled struct {
	RequestID uint32 `json:"request_id"`
}

func (SponsorshipCancelled) Kind() Kind { return KindSponsorshipCancelled }
