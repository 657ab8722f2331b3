package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/victornm/storefront/internal/config"
	"github.com/victornm/storefront/internal/server"
	"github.com/victornm/storefront/internal/telemetry"
)

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	if err := telemetry.SetupLogger(os.Stdout, c.Log.Level); err != nil {
		log.Fatalf("Setup logger failed: %v", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		log.Fatalf("Init server failed: %v", err)
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
}

func loadConfig() (server.Config, error) {
	var c server.Config

	if err := config.LoadFromEnv(&c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
