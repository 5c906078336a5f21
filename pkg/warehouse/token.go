package warehouse

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TokenSource produces a fresh warehouse credential.
type TokenSource func(ctx context.Context) (string, error)

// StaticTokenSource always returns the same token.
func StaticTokenSource(token string) TokenSource {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// FileTokenSource re-reads a token file on every call, for deployments where
// an external agent rotates the credential on disk.
func FileTokenSource(path string) TokenSource {
	return func(context.Context) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
}

// TokenHolder is the atomically-swapped credential shared between request
// handling and the background refresher. Readers never block on a refresh.
type TokenHolder struct {
	v atomic.Value
}

// NewTokenHolder seeds the holder with an initial token.
func NewTokenHolder(token string) *TokenHolder {
	h := &TokenHolder{}
	h.v.Store(token)
	return h
}

// Token returns the current credential.
func (h *TokenHolder) Token() string {
	t, _ := h.v.Load().(string)
	return t
}

func (h *TokenHolder) set(token string) {
	h.v.Store(token)
}

// TokenRefresher periodically swaps a fresh credential into a TokenHolder.
// It runs decoupled from request handling: a failed refresh keeps the
// previous token, is logged locally, and is retried on the next interval.
type TokenRefresher struct {
	holder   *TokenHolder
	source   TokenSource
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewTokenRefresher creates a refresher for holder. Start must be called to
// begin refreshing.
func NewTokenRefresher(holder *TokenHolder, source TokenSource, interval time.Duration, logger *zap.Logger) *TokenRefresher {
	return &TokenRefresher{
		holder:   holder,
		source:   source,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop in its own goroutine.
func (r *TokenRefresher) Start() {
	go r.run()
}

func (r *TokenRefresher) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refresh()
		case <-r.stop:
			return
		}
	}
}

func (r *TokenRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := r.source(ctx)
	if err != nil {
		r.logger.Warn("credential refresh failed, keeping previous token", zap.Error(err))
		return
	}
	if token == "" {
		r.logger.Warn("credential refresh returned empty token, keeping previous token")
		return
	}
	r.holder.set(token)
	r.logger.Debug("warehouse credential refreshed")
}

// Stop terminates the refresh loop and waits for it to exit.
func (r *TokenRefresher) Stop() {
	close(r.stop)
	<-r.done
}
