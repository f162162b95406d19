// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledgersdk is the Go client for the adledger HTTP API.
package ledgersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luxfi/adledger/pkg/catalog"
	"github.com/luxfi/adledger/pkg/events"
	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/registry"
	"github.com/luxfi/adledger/pkg/sponsorship"
	"github.com/luxfi/adledger/pkg/tracking"
)

// Client talks to an adledger node on behalf of one account.
type Client struct {
	baseURL    string
	account    ids.AccountID
	httpClient *http.Client
}

// NewClient creates a client for the given node and account.
func NewClient(baseURL string, account ids.AccountID) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		account: account,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register registers the client's account as an advertiser.
func (c *Client) Register(ctx context.Context, name string, deposit uint64) error {
	return c.post(ctx, "/v1/advertisers", map[string]any{
		"name":    name,
		"deposit": deposit,
	}, nil)
}

// IncreaseDeposit tops up the advertiser's reserved deposit.
func (c *Client) IncreaseDeposit(ctx context.Context, amount uint64) error {
	return c.post(ctx, "/v1/advertisers/deposit", map[string]any{"amount": amount}, nil)
}

// Deregister removes the advertiser profile and refunds the deposit.
func (c *Client) Deregister(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/advertisers", nil, nil)
}

// Profile fetches an advertiser profile.
func (c *Client) Profile(ctx context.Context, account ids.AccountID) (registry.Profile, error) {
	var profile registry.Profile
	err := c.do(ctx, http.MethodGet, "/v1/advertisers/"+account.String(), nil, &profile)
	return profile, err
}

// CreateSpot opens a new ad spot. Operator accounts only.
func (c *Client) CreateSpot(ctx context.Context) (uint32, error) {
	var out struct {
		SpotID uint32 `json:"spot_id"`
	}
	err := c.post(ctx, "/v1/spots", nil, &out)
	return out.SpotID, err
}

// SubmitAd places an ad against an available spot.
func (c *Client) SubmitAd(ctx context.Context, spotID uint32, name, description, contentRef string, funding uint64) (uint32, error) {
	var out struct {
		AdID uint32 `json:"ad_id"`
	}
	err := c.post(ctx, "/v1/ads", map[string]any{
		"spot_id":     spotID,
		"name":        name,
		"description": description,
		"content_ref": contentRef,
		"funding":     funding,
	}, &out)
	return out.AdID, err
}

// DeactivateAd turns the ad off.
func (c *Client) DeactivateAd(ctx context.Context, adID uint32) error {
	return c.post(ctx, fmt.Sprintf("/v1/ads/%d/deactivate", adID), nil, nil)
}

// Ad fetches an ad record.
func (c *Client) Ad(ctx context.Context, adID uint32) (catalog.Ad, error) {
	var ad catalog.Ad
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/ads/%d", adID), nil, &ad)
	return ad, err
}

// AdMetrics fetches the aggregate counters for an ad.
func (c *Client) AdMetrics(ctx context.Context, adID uint32) (tracking.AdMetrics, error) {
	var m tracking.AdMetrics
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/ads/%d/metrics", adID), nil, &m)
	return m, err
}

// AdReport fetches the engagement report for an ad.
func (c *Client) AdReport(ctx context.Context, adID uint32) (tracking.Report, error) {
	var report tracking.Report
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/ads/%d/report", adID), nil, &report)
	return report, err
}

// RecordView records that this account viewed an ad.
func (c *Client) RecordView(ctx context.Context, adID uint32, timestamp uint64) (uint32, error) {
	var out struct {
		ViewID uint32 `json:"view_id"`
	}
	err := c.post(ctx, "/v1/views", map[string]any{
		"ad_id":     adID,
		"timestamp": timestamp,
	}, &out)
	return out.ViewID, err
}

// CompleteView marks a view as watched to completion.
func (c *Client) CompleteView(ctx context.Context, viewID uint32) error {
	return c.post(ctx, fmt.Sprintf("/v1/views/%d/complete", viewID), nil, nil)
}

// RecordClick records a click on an ad.
func (c *Client) RecordClick(ctx context.Context, adID uint32) error {
	return c.post(ctx, "/v1/clicks", map[string]any{"ad_id": adID}, nil)
}

// RequestSponsorship opens a fee-reimbursement claim.
func (c *Client) RequestSponsorship(ctx context.Context, adID uint32, feeAmount uint64) (uint32, error) {
	var out struct {
		RequestID uint32 `json:"request_id"`
	}
	err := c.post(ctx, "/v1/sponsorships", map[string]any{
		"ad_id":      adID,
		"fee_amount": feeAmount,
	}, &out)
	return out.RequestID, err
}

// VerifyAdView attests the backing ad view. Operator accounts only.
func (c *Client) VerifyAdView(ctx context.Context, requestID uint32) error {
	return c.post(ctx, fmt.Sprintf("/v1/sponsorships/%d/verify", requestID), nil, nil)
}

// ReimburseFee claims the verified reimbursement.
func (c *Client) ReimburseFee(ctx context.Context, requestID uint32) error {
	return c.post(ctx, fmt.Sprintf("/v1/sponsorships/%d/reimburse", requestID), nil, nil)
}

// CancelSponsorship withdraws an unclaimed request.
func (c *Client) CancelSponsorship(ctx context.Context, requestID uint32) error {
	return c.post(ctx, fmt.Sprintf("/v1/sponsorships/%d/cancel", requestID), nil, nil)
}

// Sponsorship fetches a sponsorship request.
func (c *Client) Sponsorship(ctx context.Context, requestID uint32) (sponsorship.Request, error) {
	var request sponsorship.Request
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/sponsorships/%d", requestID), nil, &request)
	return request, err
}

// FeedEntry is a journal entry as received over the event feed. The
// payload stays raw; decode it based on Kind.
type FeedEntry struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	Time       time.Time       `json:"time"`
	Kind       events.Kind     `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	PrevDigest []byte          `json:"prev_digest,omitempty"`
	Digest     []byte          `json:"digest"`
}

// SubscribeEvents opens the websocket event feed. Entries arrive on
// the returned channel until the context is cancelled or the
// connection drops, after which the channel closes.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan FeedEntry, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/v1/events"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing event feed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	out := make(chan FeedEntry)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var entry FeedEntry
			if err := conn.ReadJSON(&entry); err != nil {
				return
			}
			select {
			case out <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Ledger-Account", c.account.String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
