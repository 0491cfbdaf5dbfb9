package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lifemarket/config"
	"lifemarket/core/events"
	"lifemarket/core/state"
	"lifemarket/native/market"
	"lifemarket/observability/logging"
	"lifemarket/rpc"
	"lifemarket/storage"
)

const rpcTokenEnv = "MARKET_RPC_TOKEN"

func main() {
	configFile := flag.String("config", "./market.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MARKET_ENV"))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Environment
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	operator, err := cfg.OperatorAddress()
	if err != nil {
		logger.Error("Invalid operator address", slog.Any("error", err))
		os.Exit(1)
	}
	custody, err := cfg.CustodyAddress()
	if err != nil {
		logger.Error("Invalid custody address", slog.Any("error", err))
		os.Exit(1)
	}
	custodyModel, err := cfg.Custody()
	if err != nil {
		logger.Error("Invalid custody model", slog.Any("error", err))
		os.Exit(1)
	}
	tokens, err := cfg.TokenAddresses()
	if err != nil {
		logger.Error("Invalid accepted tokens", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	stream := events.NewStream(func() int64 { return time.Now().Unix() })

	registry := state.NewRegistry(manager, custody)
	registry.SetEmitter(stream)
	ledger := state.NewPaymentLedger(manager, custody)
	ledger.SetEmitter(stream)

	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetRegistry(registry)
	engine.SetPayments(ledger)
	engine.SetEmitter(stream)
	engine.SetOperator(operator)
	engine.SetCustodyAccount(custody)
	engine.SetCustodyModel(custodyModel)
	engine.SetAcceptedTokens(tokens)
	engine.SetTargetedListings(cfg.TargetedListings)

	if err := seedFeeConfig(manager, cfg); err != nil {
		logger.Error("Failed to seed fee configuration", slog.Any("error", err))
		os.Exit(1)
	}

	authToken := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if authToken == "" {
		logger.Warn("RPC auth token not configured; mutating methods will be rejected", slog.String("env", rpcTokenEnv))
	}

	server := rpc.NewServer(engine, manager, registry, ledger, stream, authToken, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("marketd starting",
		slog.String("rpc", cfg.RPCAddress),
		slog.String("dataDir", cfg.DataDir),
		slog.String("custodyModel", custodyModel.String()),
	)
	if err := server.Serve(ctx, cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("marketd shut down")
}

// seedFeeConfig writes the configured fee parameters on first start only;
// operator changes made at runtime survive restarts.
func seedFeeConfig(manager *state.Manager, cfg *config.Config) error {
	_, exists, err := manager.FeeConfigGet()
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return manager.FeeConfigPut(market.FeeConfig{FeeBps: cfg.FeeBps, MaxFeeBps: cfg.MaxFeeBps})
}
