// Copyright 2026 The Attenda Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attenda-foundation/attenda/lib/clock"
	"github.com/attenda-foundation/attenda/lib/ref"
	"github.com/attenda-foundation/attenda/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		listenAddr  string
		packageID   string
	)
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&listenAddr, "listen", ":8780", "listen address")
	flag.StringVar(&packageID, "package", "", "contract package object ID this server serves (required)")
	flag.Parse()

	if showVersion {
		fmt.Printf("attenda-keyserver %s\n", version.Info())
		return nil
	}

	pkg, err := ref.ParseObjectID(packageID)
	if err != nil {
		return fmt.Errorf("--package: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	log.Warn("running with the structural evaluator: no ownership checks are performed")

	server := NewServer(pkg, structuralEvaluator(), clock.Real(), log)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("key server listening", "addr", listenAddr, "package", pkg)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down: %w", err)
	}
	log.Info("key server stopped")
	return nil
}
