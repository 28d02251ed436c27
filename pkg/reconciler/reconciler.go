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

// Package reconciler is the remote driver of spec.md §4.3: load every
// archive the workbench synchronized over, read back the engine's
// image catalog, split it into the actual and target sets, compute a
// plan, apply each change in order and finally garbage-collect.
// Grounded on original_source's subcommand/deploy/deploy_on_remote.py
// main(): _load_target_images, _get_images,
// the {container_count != 0} / {image_id in target_image_ids}
// partition, _plan_changes, the per-change loop, and
// _collect_garbage.
package reconciler

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/evolutics/wheelsticks/pkg/applier"
	"github.com/evolutics/wheelsticks/pkg/engine"
	"github.com/evolutics/wheelsticks/pkg/metadata"
	"github.com/evolutics/wheelsticks/pkg/planner"
)

// Reconciler drives a single reconcile pass against the local engine.
type Reconciler struct {
	Fs      afero.Fs
	Engine  engine.Engine
	Applier *applier.Applier
	// Workbench is the directory synchronized from the build host,
	// holding this run's target `<image-id>.tar` archives.
	Workbench string

	Log zerolog.Logger
}

// Run loads the target archives, reads the engine's current image
// catalog, plans the ordered set of container changes and applies them,
// then prunes anything the engine no longer references.
func (r *Reconciler) Run(ctx context.Context) error {
	targetIDs, err := r.loadTargetImages(ctx)
	if err != nil {
		return err
	}

	records, err := r.Engine.Images(ctx)
	if err != nil {
		return fmt.Errorf("failed to list engine images: %w", err)
	}

	var actual, target []metadata.Image
	for _, record := range records {
		image, err := metadata.Parse(record)
		if err != nil {
			return fmt.Errorf("failed to parse image %q: %w", record.Id, err)
		}
		if image.ContainerCount != 0 {
			actual = append(actual, image)
		}
		if targetIDs[image.ImageID] {
			target = append(target, image)
		}
	}

	changes := planner.Plan(actual, target)
	r.Log.Info().Int("changes", len(changes)).Msg("applying plan")
	for _, change := range changes {
		if err := r.Applier.Apply(ctx, change); err != nil {
			return fmt.Errorf("failed to apply change for container %q: %w", change.ContainerName, err)
		}
	}

	r.Log.Info().Msg("collecting garbage")
	if err := r.Engine.SystemPrune(ctx); err != nil {
		return fmt.Errorf("failed to prune engine state: %w", err)
	}
	return nil
}

// loadTargetImages loads every `*.tar` archive in Workbench, in
// ascending filename order for predictable logging, and returns the
// set of image IDs (their filename stems) now present.
func (r *Reconciler) loadTargetImages(ctx context.Context) (map[string]bool, error) {
	entries, err := afero.ReadDir(r.Fs, r.Workbench)
	if err != nil {
		return nil, fmt.Errorf("failed to list workbench directory %q: %w", r.Workbench, err)
	}

	var names []string
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tar" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	ids := make(map[string]bool, len(names))
	for _, name := range names {
		path := filepath.Join(r.Workbench, name)
		r.Log.Info().Str("path", path).Msg("loading image file")
		if err := r.Engine.Load(ctx, path); err != nil {
			return nil, fmt.Errorf("failed to load image file %q: %w", path, err)
		}
		id := name[:len(name)-len(filepath.Ext(name))]
		ids[id] = true
	}
	return ids, nil
}
