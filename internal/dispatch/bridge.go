/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	applog "tigerlauncher/internal/log"
	"tigerlauncher/internal/version"
)

var (
	ErrQueueFull = errors.New("dispatch queue full")
	ErrClosed    = errors.New("dispatcher closed")
)

// Outcomes reported to BridgeConfig.OnResult.
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected" // circuit open
	OutcomeDropped  = "dropped"  // queue full
)

// BridgeConfig configures the HTTP bridge.
type BridgeConfig struct {
	URL       string
	Timeout   time.Duration
	QueueSize int
	// OnResult, if set, is called once per event with one of the Outcome values.
	OnResult func(outcome string)
	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// Bridge posts events as JSON to a host-side endpoint that performs them.
// Dispatch only enqueues; a background goroutine sends. Repeated failures
// open a circuit breaker so a dead host does not keep the queue busy.
type Bridge struct {
	cfg  BridgeConfig
	log  *slog.Logger
	cli  *http.Client
	cb   *gobreaker.CircuitBreaker
	q    chan Event
	once sync.Once
	stop chan struct{}
	done chan struct{}

	// mu orders enqueues against Close and guards the pending count.
	mu      sync.Mutex
	closed  bool
	pending int
	idle    chan struct{} // closed when pending drops to zero
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	cli := cfg.Client
	if cli == nil {
		cli = &http.Client{Timeout: cfg.Timeout}
	}
	l := applog.WithComponent("dispatch")
	b := &Bridge{
		cfg:  cfg,
		log:  l,
		cli:  cli,
		q:    make(chan Event, cfg.QueueSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "action-bridge",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("bridge circuit state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	go b.loop()
	return b
}

// Dispatch enqueues ev. It never blocks.
func (b *Bridge) Dispatch(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	select {
	case b.q <- ev:
		b.pending++
		if b.pending == 1 {
			b.idle = make(chan struct{})
		}
		b.mu.Unlock()
		return nil
	default:
		b.mu.Unlock()
		b.report(OutcomeDropped)
		return ErrQueueFull
	}
}

// State exposes the breaker state for diagnostics.
func (b *Bridge) State() gobreaker.State { return b.cb.State() }

// Flush waits until every queued event has been handled.
func (b *Bridge) Flush(ctx context.Context) error {
	b.mu.Lock()
	if b.pending == 0 {
		b.mu.Unlock()
		return nil
	}
	idle := b.idle
	b.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the sender. Events still queued are dropped.
func (b *Bridge) Close() {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.stop)
		<-b.done
	})
}

func (b *Bridge) handled() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending--
	if b.pending == 0 {
		close(b.idle)
	}
}

func (b *Bridge) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			for {
				select {
				case <-b.q:
					b.report(OutcomeDropped)
					b.handled()
				default:
					return
				}
			}
		case ev := <-b.q:
			b.send(ev)
			b.handled()
		}
	}
}

type payload struct {
	Event
	Version string `json:"version"`
	OS      string `json:"os"`
}

func (b *Bridge) send(ev Event) {
	_, err := b.cb.Execute(func() (interface{}, error) {
		buf, err := json.Marshal(payload{Event: ev, Version: version.String(), OS: runtime.GOOS})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(buf))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := b.cli.Do(req)
		if err != nil {
			return nil, err
		}
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("bridge returned %s", resp.Status)
		}
		return nil, nil
	})
	switch {
	case err == nil:
		b.log.Debug("action sent", slog.String("point", ev.PointID), slog.String("action", ev.Action.String()))
		b.report(OutcomeSent)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		b.log.Warn("action rejected, bridge circuit open", slog.String("point", ev.PointID))
		b.report(OutcomeRejected)
	default:
		b.log.Warn("action send failed", slog.String("point", ev.PointID), slog.Any("err", err))
		b.report(OutcomeFailed)
	}
}

func (b *Bridge) report(outcome string) {
	if b.cfg.OnResult != nil {
		b.cfg.OnResult(outcome)
	}
}
