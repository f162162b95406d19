// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the ledger over HTTP. Callers identify
// themselves with the X-Ledger-Account header carrying a hex account
// id; there is no signature verification at this layer.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/luxfi/adledger/pkg/bank"
	"github.com/luxfi/adledger/pkg/catalog"
	"github.com/luxfi/adledger/pkg/events"
	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/metric"
	"github.com/luxfi/adledger/pkg/registry"
	"github.com/luxfi/adledger/pkg/sponsorship"
	"github.com/luxfi/adledger/pkg/tracking"
)

const accountHeader = "X-Ledger-Account"

// Server routes HTTP requests to the ledger components.
type Server struct {
	registry *registry.Registry
	catalog  *catalog.Catalog
	tracking *tracking.Ledger
	escrow   *sponsorship.Escrow
	journal  *events.Journal
	metrics  *metric.Metrics
	log      log.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// NewServer wires the components into a gin router. metrics may be nil.
func NewServer(
	reg *registry.Registry,
	cat *catalog.Catalog,
	trk *tracking.Ledger,
	escrow *sponsorship.Escrow,
	journal *events.Journal,
	metrics *metric.Metrics,
	logger log.Logger,
) *Server {
	s := &Server{
		registry: reg,
		catalog:  cat,
		tracking: trk,
		escrow:   escrow,
		journal:  journal,
		metrics:  metrics,
		log:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(s.observeDuration)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/advertisers", s.handleRegister)
		v1.POST("/advertisers/deposit", s.handleIncreaseDeposit)
		v1.DELETE("/advertisers", s.handleDeregister)
		v1.GET("/advertisers/:account", s.handleProfile)

		v1.POST("/spots", s.handleCreateSpot)
		v1.GET("/spots/:id", s.handleGetSpot)

		v1.POST("/ads", s.handleSubmitAd)
		v1.POST("/ads/:id/deactivate", s.handleDeactivateAd)
		v1.GET("/ads/:id", s.handleGetAd)
		v1.GET("/ads/:id/metrics", s.handleAdMetrics)
		v1.GET("/ads/:id/report", s.handleAdReport)

		v1.POST("/views", s.handleRecordView)
		v1.POST("/views/:id/complete", s.handleCompleteView)
		v1.POST("/clicks", s.handleRecordClick)

		v1.POST("/sponsorships", s.handleRequestSponsorship)
		v1.POST("/sponsorships/:id/verify", s.handleVerifyAdView)
		v1.POST("/sponsorships/:id/reimburse", s.handleReimburseFee)
		v1.POST("/sponsorships/:id/cancel", s.handleCancelSponsorship)
		v1.GET("/sponsorships/:id", s.handleGetSponsorship)
		v1.GET("/sponsorships/pending/:account", s.handlePendingSponsorship)

		v1.GET("/events", s.handleEventFeed)
	}

	s.router = router
	return s
}

// Handler returns the HTTP handler for serving.
func (s *Server) Handler() http.Handler {
	return s.router
}

// observeDuration times mutating requests into the transition
// histogram. Reads and the event feed are excluded.
func (s *Server) observeDuration(c *gin.Context) {
	if s.metrics == nil || c.Request.Method == http.MethodGet {
		c.Next()
		return
	}
	start := time.Now()
	c.Next()
	s.metrics.TransitionDuration.Observe(time.Since(start).Seconds())
}

type registerRequest struct {
	Name    string `json:"name" binding:"required"`
	Deposit uint64 `json:"deposit" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.registry.Register(caller, req.Name, req.Deposit); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": caller})
}

type depositRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

func (s *Server) handleIncreaseDeposit(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.registry.IncreaseDeposit(caller, req.Amount); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeregister(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	if err := s.registry.Deregister(caller); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleProfile(c *gin.Context) {
	account, err := ids.AccountIDFromString(c.Param("account"))
	if err != nil {
		badRequest(c, err)
		return
	}
	profile, err := s.registry.Profile(account)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleCreateSpot(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	spotID, err := s.catalog.CreateSpot(caller)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"spot_id": spotID})
}

func (s *Server) handleGetSpot(c *gin.Context) {
	spotID, ok := pathID(c)
	if !ok {
		return
	}
	spot, err := s.catalog.Spot(spotID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, spot)
}

type submitAdRequest struct {
	SpotID      uint32 `json:"spot_id"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ContentRef  string `json:"content_ref"`
	Funding     uint64 `json:"funding"`
}

func (s *Server) handleSubmitAd(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req submitAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	adID, err := s.catalog.SubmitAd(caller, req.SpotID, req.Name, req.Description, req.ContentRef, req.Funding)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ad_id": adID})
}

func (s *Server) handleDeactivateAd(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	adID, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.catalog.DeactivateAd(caller, adID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetAd(c *gin.Context) {
	adID, ok := pathID(c)
	if !ok {
		return
	}
	ad, err := s.catalog.Ad(adID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *Server) handleAdMetrics(c *gin.Context) {
	adID, ok := pathID(c)
	if !ok {
		return
	}
	m, err := s.tracking.Metrics(adID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleAdReport(c *gin.Context) {
	adID, ok := pathID(c)
	if !ok {
		return
	}
	report, err := s.tracking.BuildReport(adID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type recordViewRequest struct {
	AdID      uint32 `json:"ad_id"`
	Timestamp uint64 `json:"timestamp"`
}

func (s *Server) handleRecordView(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req recordViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	timestamp := req.Timestamp
	if timestamp == 0 {
		timestamp = uint64(time.Now().Unix())
	}
	viewID, err := s.tracking.RecordView(caller, req.AdID, timestamp)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"view_id": viewID})
}

func (s *Server) handleCompleteView(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	viewID, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.tracking.CompleteView(caller, viewID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type recordClickRequest struct {
	AdID uint32 `json:"ad_id"`
}

func (s *Server) handleRecordClick(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req recordClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.tracking.RecordClick(caller, req.AdID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sponsorshipRequest struct {
	AdID      uint32 `json:"ad_id"`
	FeeAmount uint64 `json:"fee_amount" binding:"required"`
}

func (s *Server) handleRequestSponsorship(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req sponsorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	requestID, err := s.escrow.RequestSponsorship(caller, req.AdID, req.FeeAmount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request_id": requestID})
}

func (s *Server) handleVerifyAdView(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.escrow.VerifyAdView(caller, requestID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReimburseFee(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.escrow.ReimburseFee(caller, requestID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCancelSponsorship(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.escrow.CancelSponsorship(caller, requestID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetSponsorship(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	request, err := s.escrow.Request(requestID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (s *Server) handlePendingSponsorship(c *gin.Context) {
	account, err := ids.AccountIDFromString(c.Param("account"))
	if err != nil {
		badRequest(c, err)
		return
	}
	requestID, ok, err := s.escrow.Pending(account)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": ok, "request_id": requestID})
}

// handleEventFeed streams journal entries over a websocket. The stream
// starts at subscription time; missed history is not replayed.
func (s *Server) handleEventFeed(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.Error(err))
		return
	}
	defer conn.Close()

	entries, cancel := s.journal.Subscribe(64)
	defer cancel()

	// Drain client frames so close messages are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case entry, open := <-entries:
			if !open {
				return
			}
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) caller(c *gin.Context) (ids.AccountID, bool) {
	raw := c.GetHeader(accountHeader)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + accountHeader + " header"})
		return ids.AccountID{}, false
	}
	account, err := ids.AccountIDFromString(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid " + accountHeader + " header"})
		return ids.AccountID{}, false
	}
	return account, true
}

func pathID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, err)
		return 0, false
	}
	return uint32(id), true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// fail maps component errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotRegistered),
		errors.Is(err, catalog.ErrSpotNotFound),
		errors.Is(err, catalog.ErrAdNotFound),
		errors.Is(err, tracking.ErrViewNotFound),
		errors.Is(err, sponsorship.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrUnauthorized),
		errors.Is(err, sponsorship.ErrUnauthorized),
		errors.Is(err, sponsorship.ErrNotRequester),
		errors.Is(err, tracking.ErrNotViewer):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrAlreadyRegistered),
		errors.Is(err, registry.ErrActiveAds),
		errors.Is(err, catalog.ErrSpotNotAvailable),
		errors.Is(err, tracking.ErrViewAlreadyCompleted),
		errors.Is(err, sponsorship.ErrPendingExists),
		errors.Is(err, sponsorship.ErrAlreadySponsored):
		return http.StatusConflict
	case errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, registry.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, registry.ErrDepositTooLow),
		errors.Is(err, registry.ErrNameTooLong),
		errors.Is(err, catalog.ErrNameTooLong),
		errors.Is(err, catalog.ErrDescriptionTooLong),
		errors.Is(err, catalog.ErrContentRefTooLong),
		errors.Is(err, sponsorship.ErrFeeTooLow),
		errors.Is(err, sponsorship.ErrNotVerified):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
