// Package transfer moves the deck bundle from the instructor to each
// student over a plain HTTP data channel advertised through the session
// transport.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"ClassPresenter/internal/logger"
	"ClassPresenter/internal/tube"
)

const (
	// Service names the bundle offer among data channels.
	Service      = "classpresenter-deck"
	DocumentPath = "/document"

	bundleMime = "application/x-classroompresenter"
)

type ServerState int

const (
	ServerIdle ServerState = iota
	ServerServing
)

func (s ServerState) String() string {
	if s == ServerServing {
		return "serving"
	}
	return "idle"
}

// Server hands the bundle file to anyone who asks.
type Server struct {
	log    *logger.Logger
	tube   tube.Transport
	bundle string

	refresh func(ctx context.Context) error

	mu     sync.Mutex
	state  ServerState
	srv    *http.Server
	cancel context.CancelFunc
	url    string
}

func NewServer(log *logger.Logger, t tube.Transport, bundle string) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{log: log.With("component", "transfer-server"), tube: t, bundle: bundle}
}

// SetRefresh installs fn to rewrite the bundle before each download, so
// late joiners see the deck as it is now. Call it before Start.
func (s *Server) SetRefresh(fn func(ctx context.Context) error) {
	s.refresh = fn
}

// Handler routes GET /document to the bundle.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(tube.LogRequests(s.log))
	r.HandleFunc(DocumentPath, s.serveDocument).Methods(http.MethodGet)
	return r
}

func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request) {
	if s.refresh != nil {
		if err := s.refresh(r.Context()); err != nil {
			s.log.Warn("bundle refresh failed, serving last copy", "error", err)
		}
	}
	f, err := os.Open(s.bundle)
	if err != nil {
		s.log.Error("bundle unavailable", "path", s.bundle, "error", err)
		http.Error(w, "bundle unavailable", http.StatusServiceUnavailable)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "bundle unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", bundleMime)
	http.ServeContent(w, r, "deck.cpxo", info.ModTime(), f)
}

// Start listens on addr, then offers http://host:port/document to the
// session. An empty host resolves to the outgoing LAN address.
func (s *Server) Start(ctx context.Context, addr, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == ServerServing {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if host == "" {
		host = tube.OutgoingIP()
	}
	port := ln.Addr().(*net.TCPAddr).Port
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + DocumentPath

	// Request contexts end with Shutdown so a pending refresh cannot hold it.
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("bundle server stopped", "error", err)
		}
	}()

	if err := s.tube.OfferDataChannel(ctx, tube.Offer{Service: Service, URL: url}); err != nil {
		cancel()
		srv.Close()
		return fmt.Errorf("offer bundle: %w", err)
	}
	s.srv = srv
	s.cancel = cancel
	s.url = url
	s.state = ServerServing
	s.log.Info("serving deck bundle", "url", url, "path", s.bundle)
	return nil
}

func (s *Server) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Shutdown stops serving; in-flight downloads get until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.srv, s.cancel
	s.srv, s.cancel = nil, nil
	s.state = ServerIdle
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	cancel()
	return srv.Shutdown(ctx)
}
