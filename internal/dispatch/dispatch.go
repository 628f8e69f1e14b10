/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package dispatch hands resolved actions to whatever actually performs them
// (an app launcher on the host, a browser, a shell). The launcher core never
// performs an action itself.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"tigerlauncher/internal/domain"
)

// Event is one resolved action.
type Event struct {
	PointID string        `json:"point_id"`
	NestID  int           `json:"nest_id"`
	Action  domain.Action `json:"action"`
	At      time.Time     `json:"ts"`
}

// Dispatcher receives resolved actions. Implementations must not block the
// caller on slow I/O.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// Func adapts a function to Dispatcher.
type Func func(ctx context.Context, ev Event) error

func (f Func) Dispatch(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Log writes each action to a logger. It is the default when no bridge is configured.
type Log struct {
	L *slog.Logger
}

func (d Log) Dispatch(_ context.Context, ev Event) error {
	l := d.L
	if l == nil {
		l = slog.Default()
	}
	l.Info("action", slog.String("point", ev.PointID), slog.Int("nest", ev.NestID), slog.String("action", ev.Action.String()))
	return nil
}

// Multi fans an event out to several dispatchers and returns the first error.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, ev Event) error {
	var first error
	for _, d := range m {
		if err := d.Dispatch(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
