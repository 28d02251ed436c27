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

// Package svcunit manages the user-scope systemd unit lifecycle for a
// container: enabling/starting it and disabling/removing it, plus
// deleting the unit file podman's generator left behind. Grounded on
// original_source's subcommand/deploy/deploy_on_remote.py
// (_add_container/_remove_container's systemctl calls and the
// _USER_SYSTEMD_FOLDER constant), generalized from that script's
// one-shot subprocess.run calls into the command-wrapping style of
// pkg/svc/docker.go's command()/runCommand().
package svcunit

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/spf13/afero"
	"tailscale.com/types/lazy"

	"github.com/evolutics/wheelsticks/pkg/cmdutil"
)

// UserDir is the per-user systemd unit directory podman's systemd
// generator writes into and this package cleans up after.
const UserDir = ".config/systemd/user"

type NewCmdFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

type Manager struct {
	Fs      afero.Fs
	UnitDir string // defaults to $HOME/.config/systemd/user, resolved by New
	NewCmd  NewCmdFunc

	ensureUnitDirOnce lazy.SyncValue[error]
}

func New(fs afero.Fs, homeDir string) *Manager {
	return &Manager{
		Fs:      fs,
		UnitDir: filepath.Join(homeDir, UserDir),
		NewCmd:  cmdutil.NewStdCmd,
	}
}

// Enable starts and enables the unit so systemd supervises it across
// reboots. The unit directory is created at most once per Manager,
// the same installEnvOnce idiom the teacher uses for its own
// once-per-service filesystem setup.
func (m *Manager) Enable(ctx context.Context, unitName string) error {
	if err := m.ensureUnitDirOnce.Get(func() error {
		return m.Fs.MkdirAll(m.UnitDir, 0o755)
	}); err != nil {
		return fmt.Errorf("failed to create unit directory %q: %w", m.UnitDir, err)
	}

	cmd := m.NewCmd(ctx, "systemctl", "--now", "--user", "enable", unitName)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to enable unit %q: %w", unitName, err)
	}
	return nil
}

// Disable stops and disables the unit, then removes its generated unit
// file so a later `podman generate systemd` for a different container
// doesn't find a stale file at the same name.
func (m *Manager) Disable(ctx context.Context, unitName string) error {
	cmd := m.NewCmd(ctx, "systemctl", "--now", "--user", "disable", unitName)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to disable unit %q: %w", unitName, err)
	}

	path := filepath.Join(m.UnitDir, unitName)
	if err := m.Fs.Remove(path); err != nil {
		return fmt.Errorf("failed to remove unit file %q: %w", path, err)
	}
	return nil
}
