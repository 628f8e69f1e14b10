/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tigerlauncher/internal/config"
	"tigerlauncher/internal/crash"
	"tigerlauncher/internal/dispatch"
	"tigerlauncher/internal/launcher"
	applog "tigerlauncher/internal/log"
	"tigerlauncher/internal/metrics"
	"tigerlauncher/internal/storage"
	"tigerlauncher/internal/undo"
	"tigerlauncher/internal/version"
)

// closeTimeout bounds the final flush of pending saves and queued actions.
const closeTimeout = 10 * time.Second

type rootOptions struct {
	configPath string
	dataDir    string
	backend    string
	target     *crash.Target
}

func newRootCmd(target *crash.Target) *cobra.Command {
	if target == nil {
		target = &crash.Target{}
	}
	o := &rootOptions{target: target}
	cmd := &cobra.Command{
		Use:   "tigerlauncher",
		Short: "Radial gesture launcher engine",
		Long: `tigerlauncher resolves drag gestures against a layout of nested radial
menus and edits that layout. The layout is stored as JSON, SQLite or PostgreSQL.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	f := cmd.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "config file (default: per-user config path, or $TL_CONFIG)")
	f.StringVar(&o.dataDir, "data", "", "layout directory (overrides storage.path)")
	f.StringVar(&o.backend, "backend", "", "storage backend: json, sqlite or postgres")

	cmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(o),
		newResolveCmd(o),
		newPointsCmd(o),
		newNestsCmd(o),
		newAddCmd(o),
		newMoveCmd(o),
		newCopyCmd(o),
		newRemoveCmd(o),
		newSeparateCmd(o),
		newDeleteNestCmd(o),
		newSetDistanceCmd(o),
		newServeCmd(o),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// loadConfig reads the config file and applies the command line overrides.
func (o *rootOptions) loadConfig() (config.AppConfig, string, error) {
	path := o.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return config.Defaults(), "", err
		}
		path = p
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return cfg, path, err
	}
	if o.dataDir != "" {
		cfg.Storage.Path = o.dataDir
	}
	if o.backend != "" {
		cfg.Storage.Backend = o.backend
	}
	return cfg, path, cfg.Validate()
}

// app is one opened layout with everything wired around it.
type app struct {
	cfg     config.AppConfig
	store   storage.Store
	wb      *storage.WriteBehind
	bridge  *dispatch.Bridge
	watcher *config.Watcher
	m       *metrics.Collector
	l       *launcher.Launcher
	log     *slog.Logger
}

// open loads the configuration and the layout. With watch set the gesture
// settings follow the config file.
func (o *rootOptions) open(ctx context.Context, watch bool) (*app, error) {
	cfg, path, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	a := &app{cfg: cfg, log: applog.WithComponent("cli"), m: metrics.NewCollector()}

	a.store, err = storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.wb = storage.NewWriteBehind(a.store, applog.WithComponent("storage"), a.m.Save)
	o.target.Flusher = a.wb
	if dir, err := cfg.Storage.StorageDir(); err == nil {
		o.target.Dir = filepath.Join(dir, crash.DirName)
	}

	var disp dispatch.Dispatcher = dispatch.Log{L: applog.WithComponent("dispatch")}
	if cfg.Dispatch.BridgeURL != "" {
		a.bridge = dispatch.NewBridge(dispatch.BridgeConfig{
			URL:      cfg.Dispatch.BridgeURL,
			Timeout:  cfg.Dispatch.Timeout(),
			OnResult: a.m.Dispatch,
		})
		disp = dispatch.Multi{disp, a.bridge}
	}

	var settings launcher.Settings = config.Static{Cfg: cfg}
	if watch && path != "" {
		w, err := config.NewWatcher(path, cfg, applog.WithComponent("config"))
		if err != nil {
			a.log.Warn("config hot reload unavailable", slog.Any("err", err))
		} else {
			a.watcher = w
			settings = w
		}
	}

	a.l = launcher.New(launcher.Options{
		Settings:   settings,
		History:    undo.Config{MaxDepth: cfg.History.MaxDepth, MinInterval: cfg.History.CoalesceWindow()},
		Sink:       a.wb,
		Dispatcher: disp,
		Metrics:    a.m,
		Logger:     applog.WithComponent("launcher"),
	})
	a.l.Load(ctx, a.store)
	return a, nil
}

// close flushes queued actions and pending saves, then releases everything.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	var errs []error
	if a.bridge != nil {
		if err := a.bridge.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
		a.bridge.Close()
	}
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	errs = append(errs, a.wb.Close(ctx))
	return errors.Join(errs...)
}

// withApp opens the layout, runs fn and always closes.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(a *app) error) (err error) {
	a, err := o.open(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.close())
	}()
	return fn(a)
}
