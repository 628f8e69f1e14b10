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
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/launcher"
	"tigerlauncher/internal/nest"
)

func printPoints(w io.Writer, points []domain.Point) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNEST\tRING\tANGLE\tACTION\tLABEL")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f\t%s\t%s\n", p.ID, p.NestID, p.CircleNumber, p.AngleDeg, p.Action, p.Label)
	}
	return tw.Flush()
}

func printNests(w io.Writer, nests []domain.Nest) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPARENT\tRINGS")
	for _, n := range nests {
		var rings []string
		for _, r := range n.DragDistances.Sorted() {
			rings = append(rings, fmt.Sprintf("%d:%g", r.Index, r.Threshold))
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\n", n.ID, n.ParentID, strings.Join(rings, " "))
	}
	return tw.Flush()
}

func newPointsCmd(o *rootOptions) *cobra.Command {
	var nestID int
	var all bool
	cmd := &cobra.Command{
		Use:   "points",
		Short: "List points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(a *app) error {
				var out []domain.Point
				for _, p := range a.l.Points() {
					if all || p.NestID == nestID {
						out = append(out, p)
					}
				}
				sort.SliceStable(out, func(i, j int) bool {
					if out[i].NestID != out[j].NestID {
						return out[i].NestID < out[j].NestID
					}
					if out[i].CircleNumber != out[j].CircleNumber {
						return out[i].CircleNumber < out[j].CircleNumber
					}
					return out[i].AngleDeg < out[j].AngleDeg
				})
				return printPoints(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().IntVar(&nestID, "nest", domain.RootNestID, "nest to list")
	cmd.Flags().BoolVar(&all, "all", false, "list points of every nest")
	return cmd
}

func newNestsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "nests",
		Short: "List nests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(a *app) error {
				return printNests(cmd.OutOrStdout(), a.l.Nests())
			})
		},
	}
}

func newAddCmd(o *rootOptions) *cobra.Command {
	var (
		in        launcher.PointSpec
		angle     float64
		kind, arg string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a point on a free spot of a ring (or at --angle)",
		Long: `Add a point. Action kinds: none, launch_app <package>, open_url <url>,
open_nest [nest id] (a new nest is created without one), parent_nest,
toggle_panel <notifications|quick_settings|recents|app_drawer>, shortcut <name>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			action, err := domain.ParseAction(kind, arg)
			if err != nil {
				return err
			}
			in.Action = action
			if cmd.Flags().Changed("angle") {
				in.Angle = &angle
			}
			return o.withApp(cmd, func(a *app) error {
				p, err := a.l.AddPoint(in)
				if err != nil {
					return err
				}
				return printPoints(cmd.OutOrStdout(), []domain.Point{p})
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&in.NestID, "nest", domain.RootNestID, "nest to add to")
	f.IntVar(&in.Ring, "ring", 0, "ring index")
	f.Float64Var(&angle, "angle", 0, "angle in degrees clockwise from up (default: a free spot)")
	f.StringVar(&kind, "action", "none", "action kind")
	f.StringVar(&arg, "arg", "", "action argument")
	f.StringVar(&in.Label, "label", "", "display label")
	return cmd
}

func newMoveCmd(o *rootOptions) *cobra.Command {
	var ring int
	var angle float64
	cmd := &cobra.Command{
		Use:   "move <point-id>",
		Short: "Move a point to a ring and angle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app) error {
				cur, err := a.l.Point(args[0])
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("ring") {
					ring = cur.CircleNumber
				}
				p, err := a.l.MovePoint(args[0], ring, angle)
				if err != nil {
					return err
				}
				return printPoints(cmd.OutOrStdout(), []domain.Point{p})
			})
		},
	}
	cmd.Flags().IntVar(&ring, "ring", 0, "target ring (default: unchanged)")
	cmd.Flags().Float64Var(&angle, "angle", 0, "target angle in degrees")
	_ = cmd.MarkFlagRequired("angle")
	return cmd
}

func newCopyCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <point-id>",
		Short: "Duplicate a point onto a free spot of its ring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app) error {
				p, err := a.l.CopyPoint(args[0])
				if err != nil {
					return err
				}
				return printPoints(cmd.OutOrStdout(), []domain.Point{p})
			})
		},
	}
}

func newRemoveCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <point-id>",
		Short: "Remove a point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app) error {
				if err := a.l.RemovePoint(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "removed", args[0])
				return nil
			})
		},
	}
}

func newSeparateCmd(o *rootOptions) *cobra.Command {
	var nestID, ring int
	cmd := &cobra.Command{
		Use:   "separate",
		Short: "Spread the points of a ring to the minimum gap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(a *app) error {
				res, err := a.l.SeparateRing(nestID, ring)
				if err != nil {
					return err
				}
				msg := fmt.Sprintf("moved %d point(s)", res.Moved)
				if res.Full {
					msg += "; ring is over capacity, points spread evenly"
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&nestID, "nest", domain.RootNestID, "nest")
	cmd.Flags().IntVar(&ring, "ring", 0, "ring index")
	return cmd
}

func newDeleteNestCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-nest <nest-id>",
		Short: "Delete a nest, its sub-nests, their points and the points opening them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("nest id must be an integer: %q", args[0])
			}
			return o.withApp(cmd, func(a *app) error {
				d, err := a.l.DeleteNest(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d nest(s) and %d point(s)\n", len(d.RemovedNests), len(d.RemovedPoints))
				return nil
			})
		},
	}
}

func newSetDistanceCmd(o *rootOptions) *cobra.Command {
	var nestID, ring int
	var distance float64
	cmd := &cobra.Command{
		Use:   "set-distance",
		Short: "Set (or add) the drag distance threshold of a ring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(a *app) error {
				if err := a.l.SetDragDistance(nestID, ring, distance); err != nil {
					return err
				}
				n, _ := nest.Find(a.l.Nests(), nestID)
				return printNests(cmd.OutOrStdout(), []domain.Nest{n})
			})
		},
	}
	cmd.Flags().IntVar(&nestID, "nest", domain.RootNestID, "nest")
	cmd.Flags().IntVar(&ring, "ring", 0, "ring index (-1 is the cancel zone)")
	cmd.Flags().Float64Var(&distance, "distance", 0, "threshold")
	_ = cmd.MarkFlagRequired("distance")
	return cmd
}
