package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harborgrid-justin/cadcore/common"
)

// Server is the long-running App that keeps a Service's connections,
// caches, and background workers alive until the process is asked to
// stop. It carries no HTTP or gRPC surface of its own; transport-layer
// wiring is left to whatever embeds this module.
type Server struct {
	svc *Service
}

// NewServer wraps svc as a Launcher-managed App.
func NewServer(svc *Service) *Server {
	return &Server{svc: svc}
}

// Run blocks until the process receives an interrupt or termination
// signal, then shuts the wrapped Service down.
func (s *Server) Run(l *common.Launcher) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Logger.Infof("cadcored: ready (env=%s, durable_events=%t, durable_snapshots=%t)",
		s.svc.Config.EnvName, s.svc.Config.UseDurableEventStore, s.svc.Config.UseDurableSnapshots)

	<-ctx.Done()

	l.Logger.Info("cadcored: shutdown signal received")

	return s.svc.Shutdown(context.Background())
}
