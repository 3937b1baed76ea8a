package main

import (
	"log"
	"os"

	"github.com/cascadehq/cascade/internal/api"
	"github.com/cascadehq/cascade/internal/config"
	"github.com/cascadehq/cascade/internal/dispatch"
	"github.com/cascadehq/cascade/internal/engine"
	"github.com/cascadehq/cascade/internal/gateway"
	"github.com/cascadehq/cascade/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("cascade: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"gateway_url", cfg.GatewayURL,
		"agent_url", cfg.AgentURL,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Without configured gateway/agent endpoints the simulated gateway
	// stands in, resolving every action locally with canned results.
	sim := gateway.NewSimulated(logger)
	var agents gateway.TaskExecutor = sim
	var integrations gateway.Integrations = sim
	if cfg.AgentURL != "" {
		agents = gateway.NewHTTPTaskExecutor(cfg.AgentURL)
	}
	if cfg.GatewayURL != "" {
		integrations = gateway.NewWebhook(cfg.GatewayURL)
	}

	d := dispatch.NewDispatcher(agents, integrations, logger)
	eng := engine.NewEngine(db, d, logger)
	defer eng.Wait()

	srv := api.NewServer(cfg.ListenAddr, db, eng, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
