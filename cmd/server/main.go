package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/termrack/backend/internal/config"
	"github.com/termrack/backend/internal/service"
	"github.com/termrack/backend/internal/session"
	"github.com/termrack/backend/internal/shell"
	"github.com/termrack/backend/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	fanout := session.NewFanout()

	var broadcaster *ws.Broadcaster
	svc := service.New(func(status string) {
		if broadcaster != nil {
			broadcaster.BroadcastStatus(status)
		}
	})

	registry := session.NewRegistry(cfg.Session, cfg.Shell.Home, fanout, svc.KeepAlive, svc.RefreshStatus)
	resolver := shell.NewResolver(cfg.Shell)

	broadcaster = ws.NewBroadcaster(registry, svc.Status, cfg.Server.MaxClients)
	fanout.Subscribe(broadcaster)
	fanout.Subscribe(svc)

	server := ws.NewServer(cfg.Server, registry, resolver, svc, broadcaster)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received %s, shutting down...", sig)
		case <-registry.ShutdownSignal():
			log.Println("Last session removed, shutting down...")
		}
		registry.Teardown()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
