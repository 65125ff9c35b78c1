package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prath-devops/sfdx-core/internal/api"
	"github.com/prath-devops/sfdx-core/internal/config"
	"github.com/prath-devops/sfdx-core/internal/model"
	"github.com/prath-devops/sfdx-core/internal/monitor"
	"github.com/prath-devops/sfdx-core/internal/store"
	"github.com/prath-devops/sfdx-core/internal/streaming"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("opwatch: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	probeClient := &http.Client{Timeout: 15 * time.Second}

	// Subscribe-mode watches ride on the simulated push transport; swap
	// this factory for a real streaming client to go against live servers.
	transports := func(w *model.Watch) streaming.Transport {
		return streaming.NewMockTransport(streaming.MockOptions{
			URL:          w.Target,
			SubscriberID: w.ID,
			Outcome:      streaming.OutcomeDeliver,
		})
	}

	mon := monitor.NewMonitor(db, monitor.HTTPProbeFactory(probeClient), transports, logger)
	mon.SetDefaults(cfg.DefaultFrequencyMS, cfg.DefaultTimeoutMS)
	defer mon.Wait()

	srv := api.NewServer(cfg.ListenAddr, db, mon, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
