package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/a-essam23/go-collab/pkg/state"
	"github.com/a-essam23/go-collab/pkg/transport"
)

// peer is a transport that can prove it is alive.
type peer interface {
	state.Transport
	Ping(ctx context.Context) error
	MarkAlive()
	// ExpectPong clears the liveness flag and reports whether the last
	// check was answered.
	ExpectPong() bool
}

var _ peer = (*transport.Connection)(nil)

// Heartbeat pings every live socket on a fixed interval and closes the ones
// that did not answer the previous round.
type Heartbeat struct {
	logger     *slog.Logger
	interval   time.Duration
	transports func() []state.Transport
}

func NewHeartbeat(logger *slog.Logger, interval time.Duration, transports func() []state.Transport) *Heartbeat {
	return &Heartbeat{
		logger:     logger.With(slog.String("component", "heartbeat")),
		interval:   interval,
		transports: transports,
	}
}

// Run blocks until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("Heartbeat started", slog.Duration("interval", h.interval))
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Heartbeat stopped")
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

func (h *Heartbeat) sweep(ctx context.Context) {
	terminated := 0
	for _, t := range h.transports() {
		p, ok := t.(peer)
		if !ok {
			continue
		}
		if !p.ExpectPong() {
			h.logger.Info("Terminating unresponsive connection", slog.String("connID", p.ID().String()))
			p.Close(transport.ErrHeartbeatTimeout)
			terminated++
			continue
		}
		go func() {
			pingCtx, cancel := context.WithTimeout(ctx, h.interval)
			defer cancel()
			if err := p.Ping(pingCtx); err != nil {
				h.logger.Debug("Ping failed", slog.String("connID", p.ID().String()), slog.Any("error", err))
				return
			}
			p.MarkAlive()
		}()
	}
	if terminated > 0 {
		h.logger.Info("Heartbeat sweep finished", slog.Int("terminated", terminated))
	}
}
