package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	args := getArgs()
	if args == nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(args.ConfigDir)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLog(args.ConfigDir, cfg.Server.Debug)
	if err != nil {
		log.Fatal(err)
	}

	server := newServer(cfg, logger, realClock{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.error(err.Error())
			os.Exit(1)
		}
	case <-sigCh:
		logger.info("received shutdown signal")
		server.Shutdown()
	}

	logger.info("server shutdown cleanly")
}
