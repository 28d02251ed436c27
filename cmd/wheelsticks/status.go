// Copyright 2025 AUTHORS
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/evolutics/wheelsticks/pkg/config"
	"github.com/evolutics/wheelsticks/pkg/engine"
	"github.com/evolutics/wheelsticks/pkg/metadata"
	"github.com/evolutics/wheelsticks/pkg/planner"
)

// newStatusCmd prints the plan reconcile would apply, without applying
// it: a read-only counterpart to the mutating subcommands, in the same
// spirit as the teacher's own inspection commands alongside its
// mutating ones.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the container changes reconcile would apply, without applying them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.Require(config.KV("WHEELSTICKS_REMOTE_WORKBENCH", cfg.RemoteWorkbench)); err != nil {
				return err
			}

			ctx := cmd.Context()
			eng := engine.NewPodman()

			targetIDs, err := targetImageIDs(cfg.RemoteWorkbench)
			if err != nil {
				return err
			}

			records, err := eng.Images(ctx)
			if err != nil {
				return fmt.Errorf("failed to list engine images: %w", err)
			}

			var actual, target []metadata.Image
			for _, record := range records {
				image, err := metadata.Parse(record)
				if err != nil {
					return err
				}
				if image.ContainerCount != 0 {
					actual = append(actual, image)
				}
				if targetIDs[image.ImageID] {
					target = append(target, image)
				}
			}

			changes := planner.Plan(actual, target)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "CONTAINER\tOPERATOR\tIMAGE DIGEST")
			for _, change := range changes {
				fmt.Fprintf(w, "%s\t%s\t%s\n", change.ContainerName, change.Operator, change.ImageDigest)
			}
			return nil
		},
	}
}

// targetImageIDs lists the `*.tar` filename stems present in the
// workbench directory, without loading them -- status never mutates the
// engine's image catalog, so an archive not already visible to the
// engine is simply invisible to this plan, same as a dry-run that
// hasn't synced yet.
func targetImageIDs(workbench string) (map[string]bool, error) {
	fs := afero.NewOsFs()
	entries, err := afero.ReadDir(fs, workbench)
	if err != nil {
		return nil, fmt.Errorf("failed to list workbench directory %q: %w", workbench, err)
	}
	var names []string
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tar" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	ids := make(map[string]bool, len(names))
	for _, name := range names {
		ids[name[:len(name)-len(filepath.Ext(name))]] = true
	}
	return ids, nil
}
