/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package server exposes a launcher over local HTTP for hosts that deliver
// pointer events from another process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/geometry"
	"tigerlauncher/internal/launcher"
	"tigerlauncher/internal/metrics"
	"tigerlauncher/internal/version"
)

type Server struct {
	l   *launcher.Launcher
	m   *metrics.Collector
	log *slog.Logger
}

func New(l *launcher.Launcher, m *metrics.Collector, logger *slog.Logger) *Server {
	return &Server{l: l, m: m, log: logger}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", s.m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/points", s.listPoints)
		r.Post("/points", s.addPoint)
		r.Put("/points/{id}", s.movePoint)
		r.Delete("/points/{id}", s.removePoint)
		r.Post("/points/{id}/copy", s.copyPoint)
		r.Get("/nests", s.listNests)
		r.Delete("/nests/{id}", s.deleteNest)
		r.Get("/nest", s.currentNest)
		r.Post("/gesture", s.gesture)
		r.Post("/undo", s.undo)
		r.Post("/redo", s.redo)
		r.Post("/back", s.back)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.m.HTTP(r.Method, route, status, time.Since(start))
		s.log.Debug("http",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("dur", time.Since(start)),
			slog.String("req", chimiddleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.String()})
}

func (s *Server) listPoints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.l.Points())
}

func (s *Server) listNests(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.l.Nests())
}

func (s *Server) currentNest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.l.CurrentNest())
}

type xy struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type gestureRequest struct {
	Start xy `json:"start"`
	End   xy `json:"end"`
}

func (s *Server) gesture(w http.ResponseWriter, r *http.Request) {
	var req gestureRequest
	if !readJSON(w, r, &req) {
		return
	}
	res := s.l.Resolve(r.Context(), geometry.Pt(req.Start.X, req.Start.Y), geometry.Pt(req.End.X, req.End.Y))
	writeJSON(w, http.StatusOK, res)
}

type addRequest struct {
	NestID int           `json:"nest_id"`
	Ring   int           `json:"ring"`
	Angle  *float64      `json:"angle,omitempty"`
	Action domain.Action `json:"action"`
	Label  string        `json:"label,omitempty"`
}

func (s *Server) addPoint(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !readJSON(w, r, &req) {
		return
	}
	p, err := s.l.AddPoint(launcher.PointSpec{NestID: req.NestID, Ring: req.Ring, Angle: req.Angle, Action: req.Action, Label: req.Label})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type moveRequest struct {
	Ring  int     `json:"ring"`
	Angle float64 `json:"angle"`
}

func (s *Server) movePoint(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !readJSON(w, r, &req) {
		return
	}
	p, err := s.l.MovePoint(chi.URLParam(r, "id"), req.Ring, req.Angle)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) copyPoint(w http.ResponseWriter, r *http.Request) {
	p, err := s.l.CopyPoint(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) removePoint(w http.ResponseWriter, r *http.Request) {
	if err := s.l.RemovePoint(chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteNest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "nest id must be an integer")
		return
	}
	d, err := s.l.DeleteNest(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed_nests": d.RemovedNests, "removed_points": d.RemovedPoints})
}

func (s *Server) undo(w http.ResponseWriter, _ *http.Request) {
	ok := s.l.Undo()
	writeJSON(w, http.StatusOK, map[string]any{"changed": ok, "state": s.l.View()})
}

func (s *Server) redo(w http.ResponseWriter, _ *http.Request) {
	ok := s.l.Redo()
	writeJSON(w, http.StatusOK, map[string]any{"changed": ok, "state": s.l.View()})
}

func (s *Server) back(w http.ResponseWriter, _ *http.Request) {
	ok := s.l.GoBack()
	writeJSON(w, http.StatusOK, map[string]any{"changed": ok, "nest": s.l.CurrentNest()})
}

// fail maps launcher errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, launcher.ErrPointNotFound), errors.Is(err, launcher.ErrNestNotFound):
		status = http.StatusNotFound
	case errors.Is(err, launcher.ErrRingFull), errors.Is(err, launcher.ErrRootNest):
		status = http.StatusConflict
	case errors.Is(err, launcher.ErrInvalidRing), errors.Is(err, launcher.ErrInvalidDistance), errors.Is(err, domain.ErrInvalidAction):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", slog.Any("err", err))
	}
	writeError(w, status, err.Error())
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
