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

	"github.com/spf13/cobra"

	"github.com/evolutics/wheelsticks/pkg/cli"
	"github.com/evolutics/wheelsticks/pkg/cmdutil"
	"github.com/evolutics/wheelsticks/pkg/config"
	"github.com/evolutics/wheelsticks/pkg/provision"
)

func newProvisionCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Run the Ansible playbook against the configured host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.Require(
				config.KV("WHEELSTICKS_SSH_HOST", cfg.SSHHost),
				config.KV("WHEELSTICKS_SSH_CONFIGURATION", cfg.SSHConfiguration),
				config.KV("WHEELSTICKS_PLAYBOOK", cfg.Playbook),
			); err != nil {
				return err
			}

			ctx := cmd.Context()
			host := cli.ResolveHost(ctx, cfg.SSHHost)

			if !yes && cmdutil.IsInteractive() {
				ok, err := cmdutil.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Provision %s?", host))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("provision aborted")
				}
			}

			p := provision.New(provision.Config{
				SSHHost:          host,
				SSHConfiguration: cfg.SSHConfiguration,
				Playbook:         cfg.Playbook,
			})
			return p.Run(ctx)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
