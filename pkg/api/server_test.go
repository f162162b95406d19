// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adledger/pkg/auth"
	"github.com/luxfi/adledger/pkg/bank"
	"github.com/luxfi/adledger/pkg/catalog"
	"github.com/luxfi/adledger/pkg/events"
	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/registry"
	"github.com/luxfi/adledger/pkg/sponsorship"
	"github.com/luxfi/adledger/pkg/storage"
	"github.com/luxfi/adledger/pkg/tracking"
)

type apiEnv struct {
	server   *Server
	balances *bank.Memory
	operator ids.AccountID
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store := storage.NewMemory()
	balances := bank.NewMemory(log.NoOp())
	journal, err := events.NewJournal(log.NoOp(), nil)
	require.NoError(t, err)
	operator := ids.GenerateTestAccountID()
	authority := auth.NewStaticAuthority(operator)

	reg := registry.New(store, balances, journal, nil, registry.DefaultParams(), log.NoOp())
	cat := catalog.New(store, reg, authority, journal, nil, catalog.DefaultParams(), log.NoOp())
	trk := tracking.New(store, journal, nil, log.NoOp())
	escrow := sponsorship.New(store, authority, journal, nil, sponsorship.DefaultParams(), log.NoOp())

	return &apiEnv{
		server:   NewServer(reg, cat, trk, escrow, journal, nil, log.NoOp()),
		balances: balances,
		operator: operator,
	}
}

func (e *apiEnv) do(t *testing.T, method, path string, caller ids.AccountID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != ids.Empty {
		req.Header.Set(accountHeader, caller.String())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	require := require.New(t)

	env := newAPIEnv(t)
	rec := env.do(t, http.MethodGet, "/health", ids.Empty, nil)
	require.Equal(http.StatusOK, rec.Code)
}

func TestMissingAccountHeader(t *testing.T) {
	require := require.New(t)

	env := newAPIEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/spots", ids.Empty, nil)
	require.Equal(http.StatusUnauthorized, rec.Code)
}

func TestAdLifecycleOverHTTP(t *testing.T) {
	require := require.New(t)

	env := newAPIEnv(t)
	advertiser := ids.GenerateTestAccountID()
	viewer := ids.GenerateTestAccountID()
	env.balances.Mint(advertiser, 1000)

	// Register the advertiser.
	rec := env.do(t, http.MethodPost, "/v1/advertisers", advertiser,
		gin.H{"name": "acme", "deposit": 150})
	require.Equal(http.StatusCreated, rec.Code)

	// Operator opens a spot.
	rec = env.do(t, http.MethodPost, "/v1/spots", env.operator, nil)
	require.Equal(http.StatusCreated, rec.Code)
	spotID := decodeBody(t, rec)["spot_id"].(float64)

	// Only the operator may open spots.
	rec = env.do(t, http.MethodPost, "/v1/spots", advertiser, nil)
	require.Equal(http.StatusForbidden, rec.Code)

	// Submit an ad against the spot.
	rec = env.do(t, http.MethodPost, "/v1/ads", advertiser, gin.H{
		"spot_id":     uint32(spotID),
		"name":        "spring sale",
		"description": "everything half off",
		"content_ref": "ipfs://deadbeef",
		"funding":     500,
	})
	require.Equal(http.StatusCreated, rec.Code)
	adID := uint32(decodeBody(t, rec)["ad_id"].(float64))

	// The spot is now consumed.
	rec = env.do(t, http.MethodPost, "/v1/ads", advertiser, gin.H{
		"spot_id": uint32(spotID),
		"name":    "second ad",
	})
	require.Equal(http.StatusConflict, rec.Code)

	// Record and complete a view.
	rec = env.do(t, http.MethodPost, "/v1/views", viewer, gin.H{"ad_id": adID, "timestamp": 100})
	require.Equal(http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/views/0/complete", advertiser, nil)
	require.Equal(http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/views/0/complete", viewer, nil)
	require.Equal(http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/clicks", viewer, gin.H{"ad_id": adID})
	require.Equal(http.StatusNoContent, rec.Code)

	// Metrics reflect the activity.
	rec = env.do(t, http.MethodGet, "/v1/ads/0/metrics", ids.Empty, nil)
	require.Equal(http.StatusOK, rec.Code)
	metrics := decodeBody(t, rec)
	require.Equal(float64(1), metrics["total_views"])
	require.Equal(float64(1), metrics["total_clicks"])
	require.Equal(float64(1), metrics["unique_viewers"])
}

func TestSponsorshipOverHTTP(t *testing.T) {
	require := require.New(t)

	env := newAPIEnv(t)
	user := ids.GenerateTestAccountID()

	rec := env.do(t, http.MethodPost, "/v1/sponsorships", user, gin.H{"ad_id": 0, "fee_amount": 10})
	require.Equal(http.StatusCreated, rec.Code)

	// A second request while one is pending conflicts.
	rec = env.do(t, http.MethodPost, "/v1/sponsorships", user, gin.H{"ad_id": 0, "fee_amount": 10})
	require.Equal(http.StatusConflict, rec.Code)

	// Reimbursing before verification is rejected.
	rec = env.do(t, http.MethodPost, "/v1/sponsorships/0/reimburse", user, nil)
	require.Equal(http.StatusBadRequest, rec.Code)

	// Only the operator verifies.
	rec = env.do(t, http.MethodPost, "/v1/sponsorships/0/verify", user, nil)
	require.Equal(http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodPost, "/v1/sponsorships/0/verify", env.operator, nil)
	require.Equal(http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/sponsorships/0/reimburse", user, nil)
	require.Equal(http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/sponsorships/0", ids.Empty, nil)
	require.Equal(http.StatusOK, rec.Code)
	request := decodeBody(t, rec)
	require.Equal(true, request["sponsored"])

	rec = env.do(t, http.MethodGet, "/v1/sponsorships/pending/"+user.String(), ids.Empty, nil)
	require.Equal(http.StatusOK, rec.Code)
	require.Equal(false, decodeBody(t, rec)["pending"])
}

func TestUnknownResources(t *testing.T) {
	require := require.New(t)

	env := newAPIEnv(t)
	caller := ids.GenerateTestAccountID()

	rec := env.do(t, http.MethodGet, "/v1/ads/7", ids.Empty, nil)
	require.Equal(http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/spots/7", ids.Empty, nil)
	require.Equal(http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/advertisers/"+caller.String(), ids.Empty, nil)
	require.Equal(http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/views/9/complete", caller, nil)
	require.Equal(http.StatusNotFound, rec.Code)
}
