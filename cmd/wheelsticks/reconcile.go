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
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/evolutics/wheelsticks/pkg/applier"
	"github.com/evolutics/wheelsticks/pkg/config"
	"github.com/evolutics/wheelsticks/pkg/engine"
	"github.com/evolutics/wheelsticks/pkg/reconciler"
	"github.com/evolutics/wheelsticks/pkg/svcunit"
)

// newReconcileCmd is the remote side of deploy: it never runs over
// ssh itself, it is what ssh invokes on the target host (spec.md §4.3).
func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "reconcile",
		Short:  "Load the synchronized archives and converge containers to match them (runs on the target host)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.Require(config.KV("WHEELSTICKS_REMOTE_WORKBENCH", cfg.RemoteWorkbench)); err != nil {
				return err
			}

			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to resolve home directory: %w", err)
			}

			fs := afero.NewOsFs()
			eng := engine.NewPodman()
			units := svcunit.New(fs, homeDir)
			a := applier.New(eng, units, filepath.Join(homeDir, svcunit.UserDir))
			a.Log = operationalLogger()

			r := &reconciler.Reconciler{
				Fs:        fs,
				Engine:    eng,
				Applier:   a,
				Workbench: cfg.RemoteWorkbench,
				Log:       operationalLogger(),
			}
			return r.Run(cmd.Context())
		},
	}
}
