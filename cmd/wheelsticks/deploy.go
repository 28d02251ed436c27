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
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/evolutics/wheelsticks/pkg/cli"
	"github.com/evolutics/wheelsticks/pkg/cmdutil"
	"github.com/evolutics/wheelsticks/pkg/config"
	"github.com/evolutics/wheelsticks/pkg/transport"
)

// remoteBinaryPath is where deploy installs (and later invokes) itself
// on the target host: a sibling of the remote workbench, outside the
// directory rsync mirrors with --delete, so synchronizing never removes
// it and the workbench holds only archives.
func remoteBinaryPath(remoteWorkbench string) string {
	return path.Clean(remoteWorkbench) + ".wheelsticks"
}

func newDeployCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Synchronize the local workbench to the remote host and reconcile it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.Require(
				config.KV("WHEELSTICKS_LOCAL_WORKBENCH", cfg.LocalWorkbench),
				config.KV("WHEELSTICKS_REMOTE_WORKBENCH", cfg.RemoteWorkbench),
				config.KV("WHEELSTICKS_SSH_HOST", cfg.SSHHost),
				config.KV("WHEELSTICKS_SSH_CONFIGURATION", cfg.SSHConfiguration),
				config.KV("WHEELSTICKS_DEPLOY_USER", cfg.DeployUser),
			); err != nil {
				return err
			}

			ctx := cmd.Context()
			host := cli.ResolveHost(ctx, cfg.SSHHost)

			if !yes && cmdutil.IsInteractive() {
				ok, err := cmdutil.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Deploy %s to %s?", cfg.LocalWorkbench, host))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("deploy aborted")
				}
			}

			remoteBinary := remoteBinaryPath(cfg.RemoteWorkbench)

			if err := ensureRemoteBinary(ctx, cfg, host, remoteBinary); err != nil {
				return fmt.Errorf("failed to install wheelsticks on %s: %w", host, err)
			}

			t := transport.New(transport.Config{
				SSHConfiguration: cfg.SSHConfiguration,
				DeployUser:       cfg.DeployUser,
				SSHHost:          host,
				LocalWorkbench:   cfg.LocalWorkbench,
				RemoteWorkbench:  cfg.RemoteWorkbench,
				RemoteReconciler: remoteBinary,
			})

			info := progressColor(color.FgCyan)
			info.Fprintln(cmd.OutOrStdout(), "Synchronizing artifacts.")
			if err := t.Synchronize(ctx); err != nil {
				return err
			}

			info.Fprintln(cmd.OutOrStdout(), "Deploying on remote.")
			return t.Reconcile(ctx)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// ensureRemoteBinary installs this program's own binary onto the
// target host the first time it isn't already there, so `reconcile` has
// something to invoke over ssh. Grounded on cmd/yeet/yeet.go's
// self-distribution sequence (build once, scp, chmod +x).
func ensureRemoteBinary(ctx context.Context, cfg *config.Config, host, remoteBinary string) error {
	probe := exec.CommandContext(ctx, "ssh",
		"-F", cfg.SSHConfiguration, "-l", cfg.DeployUser, host,
		"--", "test", "-x", remoteBinary)
	if err := probe.Run(); err == nil {
		return nil
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate the wheelsticks binary to install remotely: %w", err)
	}

	destination := fmt.Sprintf("%s@%s:%s", cfg.DeployUser, host, remoteBinary)
	scp := exec.CommandContext(ctx, "scp",
		"-F", cfg.SSHConfiguration,
		"--", self, destination)
	scp.Stdout, scp.Stderr = os.Stdout, os.Stderr
	if err := scp.Run(); err != nil {
		return fmt.Errorf("failed to copy binary to %s: %w", host, err)
	}

	chmod := exec.CommandContext(ctx, "ssh",
		"-F", cfg.SSHConfiguration, "-l", cfg.DeployUser, host,
		"--", "chmod", "+x", remoteBinary)
	if err := chmod.Run(); err != nil {
		return fmt.Errorf("failed to make %s executable on %s: %w", remoteBinary, host, err)
	}
	return nil
}
