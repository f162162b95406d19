// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/adledger/pkg/api"
	"github.com/luxfi/adledger/pkg/auth"
	"github.com/luxfi/adledger/pkg/bank"
	"github.com/luxfi/adledger/pkg/catalog"
	"github.com/luxfi/adledger/pkg/events"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/metric"
	"github.com/luxfi/adledger/pkg/registry"
	"github.com/luxfi/adledger/pkg/sponsorship"
	"github.com/luxfi/adledger/pkg/storage"
	"github.com/luxfi/adledger/pkg/tracking"
)

var (
	configFile = flag.String("config", "", "Path to yaml config file")
	dataDir    = flag.String("data-dir", "", "Data directory")
	db         = flag.String("db", "", "Database backend: badger or memory")
	apiPort    = flag.Int("api-port", 0, "Ledger API port")
	opsPort    = flag.Int("ops-port", 0, "Operations server port")
	logLevel   = flag.String("log-level", "", "Log level")
	operators  = flag.String("operators", "", "Operator account ids (comma-separated hex)")
	version    = flag.Bool("version", false, "Show version information")

	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Node hosts the ledger components and their HTTP servers.
type Node struct {
	cfg Config

	store    *storage.Store
	balances *bank.Memory
	journal  *events.Journal
	metrics  *metric.Metrics

	registry *registry.Registry
	catalog  *catalog.Catalog
	tracking *tracking.Ledger
	escrow   *sponsorship.Escrow

	apiServer *http.Server
	opsServer *http.Server

	log log.Logger
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("adledgerd %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	cfg := DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	applyFlags(&cfg)

	logger := log.NewWithLevel("adledgerd", cfg.LogLevel)
	defer logger.Sync()

	node, err := NewNode(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	node.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := node.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", log.Error(err))
	}
}

func applyFlags(cfg *Config) {
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *db != "" {
		cfg.DB = *db
	}
	if *apiPort != 0 {
		cfg.APIPort = *apiPort
	}
	if *opsPort != 0 {
		cfg.OpsPort = *opsPort
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *operators != "" {
		cfg.Operators = strings.Split(*operators, ",")
	}
}

// NewNode wires the ledger components.
func NewNode(cfg Config, logger log.Logger) (*Node, error) {
	store, err := storage.Open(cfg.DB, filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	metrics, err := metric.New()
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	operatorIDs, err := cfg.operatorIDs()
	if err != nil {
		return nil, err
	}
	authority := auth.NewStaticAuthority(operatorIDs...)

	balances := bank.NewMemory(logger)
	genesis, err := cfg.genesisBalances()
	if err != nil {
		return nil, err
	}
	for account, amount := range genesis {
		balances.Mint(account, amount)
	}

	journal, err := events.NewJournal(logger, store)
	if err != nil {
		return nil, err
	}

	reg := registry.New(store, balances, journal, metrics, cfg.registryParams(), logger)
	cat := catalog.New(store, reg, authority, journal, metrics, cfg.catalogParams(), logger)
	trk := tracking.New(store, journal, metrics, logger)
	escrow := sponsorship.New(store, authority, journal, metrics, cfg.sponsorshipParams(), logger)

	node := &Node{
		cfg:      cfg,
		store:    store,
		balances: balances,
		journal:  journal,
		metrics:  metrics,
		registry: reg,
		catalog:  cat,
		tracking: trk,
		escrow:   escrow,
		log:      logger,
	}

	node.apiServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.APIPort),
		Handler: api.NewServer(reg, cat, trk, escrow, journal, metrics, logger).Handler(),
	}
	node.opsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.OpsPort),
		Handler: node.setupOpsRoutes(),
	}

	return node, nil
}

// Start launches the API and operations servers.
func (n *Node) Start() {
	go func() {
		n.log.Info("API server listening", log.Int("port", n.cfg.APIPort))
		if err := n.apiServer.ListenAndServe(); err != http.ErrServerClosed {
			n.log.Error("API server error", log.Error(err))
		}
	}()

	go func() {
		n.log.Info("ops server listening", log.Int("port", n.cfg.OpsPort))
		if err := n.opsServer.ListenAndServe(); err != http.ErrServerClosed {
			n.log.Error("ops server error", log.Error(err))
		}
	}()
}

// Shutdown stops the servers and closes the store.
func (n *Node) Shutdown(ctx context.Context) error {
	n.log.Info("shutting down")

	if err := n.apiServer.Shutdown(ctx); err != nil {
		n.log.Error("API server shutdown error", log.Error(err))
	}
	if err := n.opsServer.Shutdown(ctx); err != nil {
		n.log.Error("ops server shutdown error", log.Error(err))
	}

	return n.store.Close()
}

func (n *Node) setupOpsRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", n.handleHealth).Methods("GET")
	r.HandleFunc("/info", n.handleInfo).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(n.metrics.GetGatherer(), promhttp.HandlerOpts{})).Methods("GET")

	return r
}

func (n *Node) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"healthy"}`)
}

func (n *Node) handleInfo(w http.ResponseWriter, r *http.Request) {
	seq, digest := n.journal.Head()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"version":%q,"db":%q,"journal_seq":%d,"journal_head":%q}`,
		Version, n.cfg.DB, seq, hex.EncodeToString(digest))
}
