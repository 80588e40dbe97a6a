// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package runtime wires a parsed config.Config into a running server:
// it opens the catalog and part store, builds the shared engine.Engine,
// and runs the TCP accept loop until told to stop.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"basedb/config"
	"basedb/internal/catalog"
	"basedb/internal/engine"
	"basedb/internal/partstore"
	"basedb/logging"
)

// Runtime owns every long-lived handle a running instance holds: the
// catalog and part store backing the shared engine, and the listener
// Serve drives.
type Runtime struct {
	Config *config.Config
	Engine *engine.Engine
	Logger *logging.StandardLogger

	cat   *catalog.BadgerStore
	parts *partstore.Store
	srv   *server
}

// New opens the catalog at the first configured meta directory and the
// part store across every configured data directory (spec §6.2), and
// builds the engine.Engine shared by every connection.
//
// catalog.OpenBadgerStore only accepts a single directory while
// system.meta_dirs is a list; only the first entry is opened, and the
// remaining entries are not used.
func New(ctx context.Context, cfg *config.Config, logger *logging.StandardLogger) (*Runtime, error) {
	cat, err := catalog.OpenBadgerStore(ctx, cfg.System.MetaDirs[0])
	if err != nil {
		return nil, fmt.Errorf("runtime: opening catalog: %w", err)
	}

	parts := partstore.New(cfg.System.DataDirs)

	eng := engine.New(cat, parts)

	srv, err := newServer(cfg, eng, logger.Entry())
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("runtime: starting listener: %w", err)
	}

	return &Runtime{
		Config: cfg,
		Engine: eng,
		Logger: logger,
		cat:    cat,
		parts:  parts,
		srv:    srv,
	}, nil
}

// Addr is the address the TCP listener is bound to.
func (rt *Runtime) Addr() string {
	return rt.srv.addr()
}

// Close unmaps and closes the part store's cached column files, then
// releases the catalog. It does not close the listener; Serve closes it
// on shutdown.
func (rt *Runtime) Close() error {
	partsErr := rt.parts.Close()
	if err := rt.cat.Close(); err != nil {
		return err
	}
	return partsErr
}

// Serve runs the accept loop until ctx is cancelled or the process
// receives SIGINT/SIGTERM, then closes the listener and waits for
// in-flight connections to finish their current query before
// returning, mirroring the teacher's signal-driven graceful shutdown.
func (rt *Runtime) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.Logger.Info("listening on %s", rt.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.srv.run(ctx)
	}()

	select {
	case <-ctx.Done():
		rt.Logger.Info("shutting down")
		if err := rt.srv.close(); err != nil && !errors.Is(err, net.ErrClosed) {
			rt.Logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("closing listener")
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
