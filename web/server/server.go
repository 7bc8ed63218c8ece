/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/caiflower/hussar/pkg/crontab"
	"github.com/caiflower/hussar/pkg/limiter"
	"github.com/caiflower/hussar/pkg/logger"
	"github.com/caiflower/hussar/pkg/pool"
	"github.com/caiflower/hussar/pkg/safego"
	"github.com/caiflower/hussar/pkg/tools"
	"github.com/caiflower/hussar/web/e"
	"github.com/caiflower/hussar/web/metric"
	"github.com/caiflower/hussar/web/protocol"
	"github.com/caiflower/hussar/web/router"
	"github.com/caiflower/hussar/web/server/config"
	"github.com/caiflower/hussar/web/session"
	"github.com/robfig/cron/v3"
)

type HttpServer struct {
	options   *config.Options
	logger    logger.ILog
	router    *router.Router
	store     session.Store
	sessions  protocol.Sessions
	pool      *pool.Pool
	metric    *metric.HttpMetric
	limiter   limiter.Limiter
	cron      *crontab.CronManger
	statsID   cron.EntryID
	tlsConfig *tls.Config

	lock     sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	serving  bool
	closed   bool
}

// NewHttpServer prepares a server for r. store may be nil, in which case requests are not bound
// to sessions. Routes must be registered on r before Serve.
func NewHttpServer(options config.Options, r *router.Router, store session.Store) *HttpServer {
	_ = tools.SetDefaults(&options)
	if r == nil {
		r = router.NewRouter()
	}

	s := &HttpServer{
		options: &options,
		logger:  logger.DefaultLogger(),
		router:  r,
		store:   store,
		metric:  metric.NewHttpMetric(options.Name),
		conns:   make(map[net.Conn]struct{}),
	}
	if store != nil {
		s.sessions = store
	}
	if options.LimiterEnabled && options.Qps > 0 {
		s.limiter = limiter.NewXTokenBucket(options.Qps, options.Qps)
	}
	if options.MetricsPath != "" {
		r.GET(options.MetricsPath, s.metric.Handle)
	}

	return s
}

func (s *HttpServer) Name() string {
	return fmt.Sprintf("HUSSAR_HTTP_SERVER:%s", s.options.Name)
}

func (s *HttpServer) Metric() *metric.HttpMetric {
	return s.metric
}

// Addr is the bound address once listening, the configured one before.
func (s *HttpServer) Addr() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.options.Addr()
}

// Listen binds the configured address and loads the TLS key pair when one is configured.
func (s *HttpServer) Listen() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return e.ErrServerClosed
	}
	if s.listener != nil {
		return nil
	}

	if s.options.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(s.options.TLSCertFile, s.options.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("load tls key pair: %w", err)
		}
		s.tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	ln, err := net.Listen("tcp", s.options.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.options.Addr(), err)
	}
	s.listener = ln

	scheme := "http"
	if s.tlsConfig != nil {
		scheme = "https"
	}
	s.logger.Info(
		"\n***************************** hussar server startup ********************************************\n"+
			"************* web service [name:%s] [workers:%d] listening on %s://%s *********\n"+
			"*************************************************************************************************", s.options.Name, s.options.Workers, scheme, ln.Addr().String())
	return nil
}

// Serve accepts connections until Close. It returns e.ErrServerClosed after Close.
func (s *HttpServer) Serve() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return e.ErrServerClosed
	}
	if s.listener == nil {
		s.lock.Unlock()
		return e.ErrNotListening
	}
	if s.serving {
		s.lock.Unlock()
		return e.ErrAlreadyServed
	}
	s.serving = true
	ln := s.listener
	s.pool = pool.New(s.options.Workers, s.options.QueueSize)
	if s.options.StatsCron != "" {
		s.cron = crontab.NewCronTabManger(s.options.Name)
		id, err := s.cron.AddFunc(s.options.StatsCron, s.logStats)
		if err != nil {
			s.lock.Unlock()
			return err
		}
		s.statsID = id
		s.cron.Start()
	}
	s.lock.Unlock()

	s.router.Freeze()

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return e.ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.logger.Warn("accept failed, retrying in %s. Error: %s", tempDelay, err.Error())
				time.Sleep(tempDelay)
				continue
			}
			s.logger.Error("accept failed. Error: %s", err.Error())
			return err
		}
		tempDelay = 0

		if !s.track(conn) {
			_ = conn.Close()
			return e.ErrServerClosed
		}
		if err = s.pool.Dispatch(func() { s.serveConn(conn) }); err != nil {
			s.untrack(conn)
			return e.ErrServerClosed
		}
	}
}

// Start listens and serves in the background.
func (s *HttpServer) Start() error {
	if err := s.Listen(); err != nil {
		s.logger.Error("Listen failed. Error: %s", err.Error())
		return err
	}
	safego.Go(func() {
		if err := s.Serve(); err != nil && !errors.Is(err, e.ErrServerClosed) {
			s.logger.Error("Serve failed. Error: %s", err.Error())
		}
	})
	return nil
}

// Close stops accepting, closes live connections and waits for the workers.
func (s *HttpServer) Close() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.closed = true
	s.logger.Info("      **** hussar server %s shutdown ****", s.options.Name)

	if s.listener != nil {
		_ = s.listener.Close()
	}
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	p, c, statsID := s.pool, s.cron, s.statsID
	s.lock.Unlock()

	if err := pool.DoFunc(4, func(conn net.Conn) { _ = conn.Close() }, conns...); err != nil {
		s.logger.Warn("close connections failed. Error: %s", err.Error())
	}
	if p != nil {
		p.Close()
	}
	if c != nil {
		c.RemoveCronJob(statsID)
		c.Close()
	}
}

func (s *HttpServer) isClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}

func (s *HttpServer) track(conn net.Conn) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.metric.ConnOpened()
	return true
}

func (s *HttpServer) untrack(conn net.Conn) {
	s.lock.Lock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		s.metric.ConnClosed()
	}
	s.lock.Unlock()
	_ = conn.Close()
}

// Connections is the number of open client connections.
func (s *HttpServer) Connections() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.conns)
}

func (s *HttpServer) logStats() {
	sessions := 0
	if s.store != nil {
		sessions = s.store.Count()
	}
	next := s.cron.GetCron().Entry(s.statsID).Next
	s.logger.Info("[stats] %s connections=%d sessions=%d busyWorkers=%d queued=%d next=%s",
		s.options.Name, s.Connections(), sessions, s.pool.Running(), s.pool.Queued(), next.Format(time.RFC3339))
}
