package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/likith-indpro/votereum-backend/api"
	"github.com/likith-indpro/votereum-backend/chain"
	"github.com/likith-indpro/votereum-backend/config"
	"github.com/likith-indpro/votereum-backend/logger"
	"github.com/likith-indpro/votereum-backend/service"
	"github.com/likith-indpro/votereum-backend/store"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dataDir := flag.String("data", "", "data directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Int("port", cfg.Port).Str("rpc", cfg.RPCURL).Msg("starting votereum backend")

	st, err := store.Open(cfg.DataDir, cfg.DatabaseFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}
	defer st.Close()

	if cfg.AdminPrivateKey == "" {
		log.Fatal().Msg("admin private key is not configured")
	}
	signer, err := chain.NewTxSigner(cfg.AdminPrivateKey, cfg.ChainID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid admin private key")
	}
	log.Info().Str("admin", signer.Address().Hex()).Msg("transaction signer ready")

	retryCfg := &chain.RetryConfig{
		MaxAttempts:   cfg.MaxReadRetries,
		InitialDelay:  time.Duration(cfg.RetryBackoffSeconds) * time.Second,
		MaxDelay:      15 * time.Second,
		BackoffFactor: 2.0,
	}
	gateway, err := chain.NewEVMGateway(
		cfg.RPCURL,
		common.HexToAddress(cfg.FactoryAddress),
		signer,
		retryCfg,
		time.Duration(cfg.ConfirmTimeoutSeconds)*time.Second,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to ledger")
	}

	reconciler := service.NewReconciler(
		st,
		gateway,
		time.Duration(cfg.ReconcileIntervalSeconds)*time.Second,
		cfg.ReconcileMaxAttempts,
		log,
	)
	reconciler.Start()
	defer reconciler.Stop()

	gate := service.NewEligibilityGate(st, gateway, reconciler, log)
	elections := service.NewElectionCoordinator(st, gateway, reconciler, cfg.AllowPastStart, log)
	votes := service.NewVoteCoordinator(st, gateway, gate, reconciler, log)
	results := service.NewResultsAggregator(st, gateway, log)
	enrollment := service.NewEnrollmentService(st, log)

	server := api.NewServer(cfg.Port, st, elections, votes, gate, results, enrollment, log)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start api server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping api server")
	}
}
