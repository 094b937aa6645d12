package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"heapcache/pkg/config"
	"heapcache/pkg/db"
	"heapcache/pkg/logger"
	"heapcache/pkg/server"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", config.DefaultPath, "path to the ini config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(logger.LogConfig{LogPath: cfg.LogPath, LogLevel: cfg.LogLevel}); err != nil {
		logger.Logger.Warnf("logging to stderr only: %v", err)
	}
	log := logger.WithComponent("server")

	// One engine, shared by every connection. Each connection gets its own
	// session so its pins are released when it goes away.
	engine, err := db.OpenEngine(cfg.DataFile, cfg.PoolSize)
	if err != nil {
		log.Fatalf("open engine: %+v", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Errorf("close engine: %+v", err)
		}
	}()

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.Addr(), err)
	}
	log.Infof("listening on %s", cfg.Addr())

	srv := server.New(engine)

	// On SIGINT/SIGTERM disconnect every client and wait for their sessions
	// to drop their pins, so the deferred Close flushes a quiet pool.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("received %s, shutting down", sig)
		srv.Shutdown()
	}()

	if err := srv.Serve(listener); err != nil {
		log.Errorf("serve: %+v", err)
	}
	srv.Shutdown()
}
