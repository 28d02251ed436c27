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

// Command wheelsticks builds container images, ships them to a remote
// host and reconciles that host's running containers against them.
// Grounded on cmd/yeet/yeet.go's overall main() shape (cobra root,
// flag/env driven subcommands), reworked around a fixed, small
// subcommand set instead of a per-service remote-control surface.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/evolutics/wheelsticks/pkg/cli"
	"github.com/evolutics/wheelsticks/pkg/config"
)

var configPath string

func main() {
	root := cli.RootCmd()
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional wheelsticks.yaml configuration overlay")

	root.AddCommand(
		newBuildCmd(),
		newDeployCmd(),
		newProvisionCmd(),
		newReconcileCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// progressColor returns a color.Color gated on stdout being a real
// terminal, the same isatty-gated coloring the teacher applies to its
// human-facing CLI output.
func progressColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		c.DisableColor()
	}
	return c
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), cli.VersionCommit())
			return nil
		},
	}
}

// operationalLogger is the zerolog.Logger the reconciler and applier
// write structured events to (spec.md §10's operational register).
func operationalLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !isatty.IsTerminal(os.Stderr.Fd())}).
		With().Timestamp().Logger()
}
