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

// Package applier carries out a single planner.ContainerChange against
// the engine and systemd (spec.md §4.5). Grounded on
// original_source's subcommand/deploy/deploy_on_remote.py
// (_apply_change/_add_container/_create_network_if_not_exists/
// _remove_container and the doubling-timeout healthcheck loop).
package applier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/evolutics/wheelsticks/pkg/engine"
	"github.com/evolutics/wheelsticks/pkg/planner"
	"github.com/evolutics/wheelsticks/pkg/svcunit"
)

// Applier dispatches a change to the engine/systemd operations that
// realize it.
type Applier struct {
	Engine engine.Engine
	Units  *svcunit.Manager
	// UnitDir is where engine.GenerateSystemd writes the unit file for
	// a newly created container; it should name the same directory
	// Units disables from.
	UnitDir string

	// InitialHealthTimeout is the starting healthcheck timeout (spec.md
	// §4.5 starts this at 5s and doubles it on every timeout).
	InitialHealthTimeout time.Duration
	// Sleep is injected so tests don't block on the real gate.
	Sleep func(time.Duration)

	Log zerolog.Logger
}

func New(eng engine.Engine, units *svcunit.Manager, unitDir string) *Applier {
	return &Applier{
		Engine:               eng,
		Units:                units,
		UnitDir:              unitDir,
		InitialHealthTimeout: 5 * time.Second,
		Sleep:                time.Sleep,
	}
}

// Apply carries out one change, logging one summary line for it
// tagged with the container, digest and operator.
func (a *Applier) Apply(ctx context.Context, change planner.ContainerChange) error {
	log := a.Log.With().
		Str("container", change.ContainerName).
		Str("digest", string(change.ImageDigest)).
		Stringer("operator", change.Operator).
		Logger()

	switch change.Operator {
	case planner.ADD:
		log.Info().Msg("adding container")
		return a.add(ctx, change)
	case planner.KEEP:
		log.Debug().Msg("keeping container")
		return nil
	case planner.REMOVE:
		log.Info().Msg("removing container")
		return a.remove(ctx, change)
	default:
		return fmt.Errorf("unknown operator %v for container %q", change.Operator, change.ContainerName)
	}
}

func (a *Applier) add(ctx context.Context, change planner.ContainerChange) error {
	for _, network := range change.Networks {
		if err := a.ensureNetwork(ctx, network); err != nil {
			return err
		}
	}

	if err := a.Engine.Create(ctx, engine.ContainerSpec{
		Name:         change.ContainerName,
		ImageID:      change.ImageID,
		HealthCheck:  change.HealthCheck,
		Networks:     change.Networks,
		PortMappings: change.PortMappings,
		VolumeMounts: change.VolumeMounts,
	}); err != nil {
		return fmt.Errorf("failed to create container %q: %w", change.ContainerName, err)
	}

	if _, err := a.Engine.GenerateSystemd(ctx, change.ContainerName, a.UnitDir); err != nil {
		return fmt.Errorf("failed to generate systemd unit for %q: %w", change.ContainerName, err)
	}

	if err := a.Units.Enable(ctx, change.UnitName()); err != nil {
		return err
	}

	return a.awaitHealthy(ctx, change)
}

// ensureNetwork creates network if NetworkExists reports it absent,
// per spec.md §7: a not-found signal from the engine is expected, not
// an error.
func (a *Applier) ensureNetwork(ctx context.Context, network string) error {
	err := a.Engine.NetworkExists(ctx, network)
	if err == nil {
		return nil
	}
	if !errors.Is(err, engine.ErrNetworkNotFound) {
		return fmt.Errorf("failed to check network %q: %w", network, err)
	}
	a.Log.Info().Str("network", network).Msg("creating network")
	if err := a.Engine.NetworkCreate(ctx, network); err != nil {
		return fmt.Errorf("failed to create network %q: %w", network, err)
	}
	return nil
}

// awaitHealthy polls the container's declared health check, doubling
// the timeout each time a run doesn't finish within it, and otherwise
// retrying at the same timeout until it passes (spec.md §4.5's health
// gate). A container with no health check is considered healthy
// immediately.
func (a *Applier) awaitHealthy(ctx context.Context, change planner.ContainerChange) error {
	if change.HealthCheck == "" {
		return nil
	}

	timeout := a.InitialHealthTimeout
	for {
		err := a.Engine.HealthcheckRun(ctx, change.ContainerName, timeout)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			timeout *= 2
		}
		a.Sleep(timeout)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (a *Applier) remove(ctx context.Context, change planner.ContainerChange) error {
	if err := a.Units.Disable(ctx, change.UnitName()); err != nil {
		return err
	}
	if err := a.Engine.Rm(ctx, change.ContainerName); err != nil {
		return fmt.Errorf("failed to remove container %q: %w", change.ContainerName, err)
	}
	return nil
}
