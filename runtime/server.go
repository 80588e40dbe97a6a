// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package runtime

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"basedb/config"
	"basedb/internal/engine"
	"basedb/internal/protocol"
)

// server is the TCP listen loop spec §5 describes: a bounded pool of
// per-connection goroutines gated by a semaphore sized to
// server.pool_max, each driving one internal/protocol.Session to
// completion before the slot is released.
type server struct {
	listener net.Listener
	engine   *engine.Engine
	log      *logrus.Entry
	sem      chan struct{}
	wg       sync.WaitGroup
}

func newServer(cfg *config.Config, eng *engine.Engine, log *logrus.Entry) (*server, error) {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, err
	}
	return &server{
		listener: ln,
		engine:   eng,
		log:      log,
		sem:      make(chan struct{}, cfg.Server.PoolMax),
	}, nil
}

func (s *server) addr() string {
	return s.listener.Addr().String()
}

// run accepts connections until the listener is closed or ctx is
// cancelled, blocking new accepts while the pool is saturated at
// server.pool_max (spec §5's fixed-size worker pool).
func (s *server) run(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return err
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			_ = conn.Close()
			s.wg.Wait()
			return nil
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer c.Close()

			entry := s.log.WithField("remote_addr", c.RemoteAddr().String())
			sess := protocol.NewSession(c, s.engine, entry)
			if err := sess.Serve(ctx); err != nil {
				entry.WithError(err).Debug("connection closed")
			}
		}(conn)
	}
}

func (s *server) close() error {
	return s.listener.Close()
}
