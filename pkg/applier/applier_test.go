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

package applier

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/evolutics/wheelsticks/pkg/engine"
	"github.com/evolutics/wheelsticks/pkg/planner"
	"github.com/evolutics/wheelsticks/pkg/svcunit"
)

// noSystemctl substitutes the real "true" binary for systemctl.
func noSystemctl(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "true")
}

func newApplier(fake *engine.Fake, fs afero.Fs) *Applier {
	units := svcunit.New(fs, "/home/deploy")
	units.NewCmd = noSystemctl
	var slept []time.Duration
	a := New(fake, units, "/home/deploy/.config/systemd/user")
	a.Sleep = func(d time.Duration) { slept = append(slept, d) }
	return a
}

func TestApplyAddCreatesNetworkContainerAndEnablesUnit(t *testing.T) {
	fake := engine.NewFake()
	fs := afero.NewMemMapFs()
	a := newApplier(fake, fs)
	var systemctl []string
	a.Units.NewCmd = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		systemctl = append([]string{name}, args...)
		return exec.CommandContext(ctx, "true")
	}

	change := planner.ContainerChange{
		ContainerName: "web-0",
		ImageID:       "AAA",
		ImageDigest:   digest.Digest("sha256:aaa"),
		Networks:      []string{"app-net"},
		Operator:      planner.ADD,
	}

	require.NoError(t, a.Apply(context.Background(), change))
	require.True(t, fake.Networks["app-net"])
	require.Equal(t, "AAA", fake.Containers["web-0"])
	require.Equal(t, []string{"systemctl", "--now", "--user", "enable", "container-web-0.service"}, systemctl)
}

func TestApplyAddSkipsNetworkCreateWhenAlreadyPresent(t *testing.T) {
	fake := engine.NewFake()
	fake.Networks["app-net"] = true
	fs := afero.NewMemMapFs()
	a := newApplier(fake, fs)

	change := planner.ContainerChange{
		ContainerName: "web-0",
		ImageID:       "AAA",
		Networks:      []string{"app-net"},
		Operator:      planner.ADD,
	}

	require.NoError(t, a.Apply(context.Background(), change))
}

func TestApplyAddWaitsForHealthAndDoublesTimeoutOnDeadline(t *testing.T) {
	fake := engine.NewFake()
	fake.HealthcheckQueue["web-0"] = []error{
		errors.New("unhealthy"),
		context.DeadlineExceeded,
		errors.New("unhealthy"),
	}
	fake.Healthy["web-0"] = true
	fs := afero.NewMemMapFs()

	units := svcunit.New(fs, "/home/deploy")
	units.NewCmd = noSystemctl
	var slept []time.Duration
	a := New(fake, units, "/home/deploy/.config/systemd/user")
	a.Sleep = func(d time.Duration) { slept = append(slept, d) }

	change := planner.ContainerChange{
		ContainerName: "web-0",
		ImageID:       "AAA",
		HealthCheck:   "curl -f http://localhost/health",
		Operator:      planner.ADD,
	}

	require.NoError(t, a.Apply(context.Background(), change))
	require.Equal(t, 4, fake.HealthcheckAttempts["web-0"])
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 10 * time.Second}, slept)
}

func TestApplyKeepIsNoop(t *testing.T) {
	fake := engine.NewFake()
	fs := afero.NewMemMapFs()
	a := newApplier(fake, fs)

	change := planner.ContainerChange{ContainerName: "web-0", Operator: planner.KEEP}
	require.NoError(t, a.Apply(context.Background(), change))
	require.Empty(t, fake.Containers)
}

func TestApplyRemoveDisablesUnitAndRemovesContainer(t *testing.T) {
	fake := engine.NewFake()
	fake.Containers["web-0"] = "AAA"
	fs := afero.NewMemMapFs()
	unitPath := filepath.Join("/home/deploy/.config/systemd/user", "container-web-0.service")
	require.NoError(t, afero.WriteFile(fs, unitPath, []byte("[Unit]"), 0o644))

	a := newApplier(fake, fs)
	change := planner.ContainerChange{ContainerName: "web-0", Operator: planner.REMOVE}

	require.NoError(t, a.Apply(context.Background(), change))
	_, exists := fake.Containers["web-0"]
	require.False(t, exists)

	stillExists, err := afero.Exists(fs, unitPath)
	require.NoError(t, err)
	require.False(t, stillExists)
}
