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
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/evolutics/wheelsticks/pkg/config"
	"github.com/evolutics/wheelsticks/pkg/engine"
	"github.com/evolutics/wheelsticks/pkg/ociarchive"
	"github.com/evolutics/wheelsticks/pkg/workbench"
)

func newBuildCmd() *cobra.Command {
	var parallel bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every configured context and cache its archive in the local workbench",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.RequireList("WHEELSTICKS_BUILD_CONTEXTS", cfg.BuildContexts); err != nil {
				return err
			}
			if err := config.Require(config.KV("WHEELSTICKS_LOCAL_WORKBENCH", cfg.LocalWorkbench)); err != nil {
				return err
			}

			fs := afero.NewOsFs()
			builder := &workbench.Builder{
				Fs:       fs,
				Engine:   engine.NewPodman(),
				Dir:      cfg.LocalWorkbench,
				Parallel: parallel,
				Log:      operationalLogger(),
			}

			ids, err := builder.Build(cmd.Context(), cfg.BuildContexts)
			if err != nil {
				return err
			}

			ok := progressColor(color.FgGreen)
			for i, id := range ids {
				archivePath := filepath.Join(cfg.LocalWorkbench, id+".tar")
				description, err := ociarchive.Describe(fs, archivePath)
				if err != nil {
					description = id
				}
				ok.Fprintf(cmd.OutOrStdout(), "Built %s -> %s\n", cfg.BuildContexts[i], description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&parallel, "parallel", false, "build independent contexts concurrently")
	return cmd
}
