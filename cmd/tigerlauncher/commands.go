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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jbeda/geom"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tigerlauncher/internal/config"
	"tigerlauncher/internal/domain"
	applog "tigerlauncher/internal/log"
	"tigerlauncher/internal/server"
)

// parseCoord reads "x,y".
func parseCoord(s string) (geom.Coord, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geom.Coord{}, fmt.Errorf("coordinate %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geom.Coord{}, fmt.Errorf("coordinate %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geom.Coord{}, fmt.Errorf("coordinate %q: %w", s, err)
	}
	return geom.Coord{X: x, Y: y}, nil
}

func newResolveCmd(o *rootOptions) *cobra.Command {
	var from, to string
	var nestID int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a drag from --from to --to and perform the selected action",
		Long: `Resolve a straight drag. Screen coordinates grow right and down, angles are
clockwise from up. Navigation actions print the nest they lead to; other
actions go to the configured dispatcher.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseCoord(from)
			if err != nil {
				return err
			}
			end, err := parseCoord(to)
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(a *app) error {
				a.l.GoToNest(nestID)
				res := a.l.Resolve(cmd.Context(), start, end)
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				switch {
				case !res.HasRing:
					fmt.Fprintln(out, "no rings in nest")
				case res.Selected:
					fmt.Fprintf(out, "ring %d, angle %.1f: %s (%s), now in nest %d\n", res.Ring, res.Angle, res.Point.ID, res.Point.Action, res.Nest)
				case res.Ring == domain.CancelRing:
					fmt.Fprintf(out, "ring %d, angle %.1f: cancelled\n", res.Ring, res.Angle)
				default:
					fmt.Fprintf(out, "ring %d, angle %.1f: no action\n", res.Ring, res.Angle)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "0,0", "drag start x,y")
	cmd.Flags().StringVar(&to, "to", "", "drag end x,y")
	cmd.Flags().IntVar(&nestID, "nest", domain.RootNestID, "nest the drag starts in")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the resolution as JSON")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the launcher over local HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := o.open(ctx, true)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, a.close())
			}()
			if a.watcher != nil {
				a.watcher.OnChange(func(c config.AppConfig) {
					a.log.Info("settings reloaded",
						slog.Float64("min_angle_to_activate", c.Gesture.MinAngleToActivate),
						slog.Bool("auto_separate", c.Gesture.AutoSeparate),
						slog.Float64("min_arc_length", c.Gesture.MinArcLength))
				})
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return server.New(a.l, a.m, applog.WithComponent("server")).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	return cmd
}

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, path, err := o.loadConfig()
				if path == "" {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := o.loadConfig()
				if err != nil {
					return err
				}
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the default configuration if no file exists",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, path, _ := o.loadConfig()
				if path == "" {
					return errors.New("cannot resolve config path")
				}
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists", path)
				}
				if err := config.SaveFile(path, config.Defaults()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
				return nil
			},
		},
	)
	return cmd
}
