// Package daemon runs the long-lived check service: a JSON-RPC
// server on a unix socket backed by the spec store, plus an optional
// file watcher that revalidates documents as they change.
package daemon

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/logger"
	"github.com/alucardeht/typegate/internal/store"
	"github.com/alucardeht/typegate/internal/watcher"
)

type Daemon struct {
	cfg      *config.Config
	store    *store.Store
	server   *Server
	listener *SocketListener
	watcher  *watcher.Watcher

	conns        map[*jsonrpc2.Conn]bool
	connMu       sync.Mutex
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func NewDaemon(cfg *config.Config) (*Daemon, error) {
	s, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:      cfg,
		store:    s,
		server:   NewServer(cfg, s),
		listener: NewSocketListener(cfg.SocketPath),
		conns:    make(map[*jsonrpc2.Conn]bool),
		shutdown: make(chan struct{}),
	}

	if cfg.Watcher.Enabled {
		w, err := watcher.New(cfg.Watcher, d.server.ValidateFile)
		if err != nil {
			s.Close()
			return nil, err
		}
		d.watcher = w
	}

	return d, nil
}

func (d *Daemon) Start(ctx context.Context) error {
	if err := d.listener.Start(); err != nil {
		return err
	}

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			return err
		}
	}

	logger.Info("daemon listening", "socket", d.cfg.SocketPath)

	go d.acceptConnections(ctx)
	d.handleSignals()

	return nil
}

func (d *Daemon) acceptConnections(ctx context.Context) {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.shutdown:
				return
			default:
				continue
			}
		}

		go d.serveConnection(ctx, conn)
	}
}

func (d *Daemon) serveConnection(ctx context.Context, conn net.Conn) {
	session := uuid.NewString()
	logger.Debug("connection opened", "session", session)

	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.PlainObjectCodec{})
	rpc := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(d.server.Handle))

	d.connMu.Lock()
	d.conns[rpc] = true
	d.connMu.Unlock()

	<-rpc.DisconnectNotify()

	d.connMu.Lock()
	delete(d.conns, rpc)
	d.connMu.Unlock()

	logger.Debug("connection closed", "session", session)
}

func (d *Daemon) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	d.Shutdown()
}

func (d *Daemon) Shutdown() {
	d.shutdownOnce.Do(func() {
		close(d.shutdown)

		if d.watcher != nil {
			d.watcher.Stop()
		}

		d.listener.Close()

		d.connMu.Lock()
		for conn := range d.conns {
			conn.Close()
		}
		d.connMu.Unlock()

		d.store.Close()
		os.Remove(d.cfg.SocketPath)
	})
}

// Watcher exposes the file watcher so the daemon entry point can add
// roots from the command line. Nil when watching is disabled.
func (d *Daemon) Watcher() *watcher.Watcher {
	return d.watcher
}
