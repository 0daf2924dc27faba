package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"settlr/audit"
	"settlr/config"
	"settlr/core/state"
	"settlr/native/settlement"
	"settlr/native/token"
	"settlr/observability/logging"
	"settlr/rpc"
	"settlr/storage"
)

const envVar = "SETTLR_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", *configFile), slog.Any("error", err))
		os.Exit(1)
	}

	// SETTLR_ENV overrides the configured environment.
	env := strings.TrimSpace(os.Getenv(envVar))
	if env == "" {
		env = cfg.Env
	}
	logger := logging.Setup(cfg.ServiceName, env)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.String("dataDir", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	auditLog, err := audit.NewLog(db)
	if err != nil {
		logger.Error("failed to open audit log", slog.Any("error", err))
		os.Exit(1)
	}
	auditLog.SetLogger(logger)

	manager := state.NewManager(db)
	custody := token.NewLedger()

	engine := settlement.NewEngine()
	engine.SetState(manager)
	engine.SetCustodian(custody)
	engine.SetEmitter(auditLog)

	server := rpc.NewServer(engine, manager, custody, auditLog, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
