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

package svcunit

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestEnableInvokesSystemctl(t *testing.T) {
	var got []string
	m := New(afero.NewMemMapFs(), "/home/deploy")
	m.NewCmd = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		got = append([]string{name}, args...)
		return exec.CommandContext(ctx, "true")
	}

	require.NoError(t, m.Enable(context.Background(), "container-web-0.service"))
	require.Equal(t, []string{"systemctl", "--now", "--user", "enable", "container-web-0.service"}, got)
}

func TestDisableRemovesUnitFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := New(fs, "/home/deploy")
	m.NewCmd = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "true")
	}
	unitPath := filepath.Join(m.UnitDir, "container-web-0.service")
	require.NoError(t, afero.WriteFile(fs, unitPath, []byte("[Unit]"), 0o644))

	require.NoError(t, m.Disable(context.Background(), "container-web-0.service"))

	exists, err := afero.Exists(fs, unitPath)
	require.NoError(t, err)
	require.False(t, exists)
}
