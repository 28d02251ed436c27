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

// Package cli holds the pieces shared by every wheelsticks subcommand:
// the root cobra.Command scaffold (grounded on pkg/cli.CommandHandler's
// RootCmd, trimmed to this program's own command set), the build
// version string, and Tailscale-based host resolution (grounded on
// cmd/yeet/yeet.go's getDockerHost) layered over a literal
// WHEELSTICKS_SSH_HOST as a convenience: a tailnet name resolves to its
// full DNS name, anything else passes through unchanged so a plain
// hostname or IP in the config keeps working without Tailscale running.
package cli

import (
	"context"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"tailscale.com/client/tailscale"
)

// RootCmd builds the bare `wheelsticks` root command; each subcommand
// package adds its own cobra.Command via cmd.AddCommand.
func RootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wheelsticks",
		Short: "Build, deploy and reconcile containers over SSH",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
}

// VersionCommit returns the VCS commit embedded in the binary by the Go
// toolchain, or "dev"/"unknown" if that information isn't available.
func VersionCommit() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	var dirty bool
	var commit string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if commit == "" {
		return "dev"
	}
	if len(commit) >= 9 {
		commit = commit[:9]
	}
	if dirty {
		commit += "+dirty"
	}
	return commit
}

// ResolveHost tries to match host against a Tailscale peer's FQDN or
// short name and, if found, returns the peer's full DNS name; otherwise
// it returns host unchanged, so a literal hostname/IP or an
// unreachable tailscaled doesn't block the rest of the program.
func ResolveHost(ctx context.Context, host string) string {
	var lc tailscale.LocalClient
	st, err := lc.Status(ctx)
	if err != nil {
		return host
	}
	for _, peer := range st.Peer {
		fqdn := strings.TrimSuffix(peer.DNSName, ".")
		if strings.EqualFold(fqdn, host) {
			return fqdn
		}
		shortName, _, _ := strings.Cut(peer.DNSName, ".")
		if strings.EqualFold(shortName, host) {
			return fqdn
		}
	}
	return host
}
