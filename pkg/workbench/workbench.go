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

// Package workbench is the local builder of spec.md §4.1: for each given
// build context it produces an `<image-id>.tar` OCI archive under a
// shared directory, reusing one already on disk when it is still a
// valid archive, and afterwards removes any archive in that directory
// this run did not produce. Grounded on original_source's
// subcommand/build/build.py (_build_image_file, _build_image,
// _save_image and its trailing GC loop), adapted from a single
// sequential Python loop into a builder that can optionally fan its
// independent context builds out with an errgroup (spec.md §5
// explicitly allows this as long as garbage collection still runs only
// after every build has settled, which is why collectGarbage is called
// once, after the fan-out join, never per-context).
package workbench

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/evolutics/wheelsticks/pkg/engine"
	"github.com/evolutics/wheelsticks/pkg/ociarchive"
)

// Builder builds and caches image archives in Dir.
type Builder struct {
	Fs     afero.Fs
	Engine engine.Engine
	Dir    string

	// Parallel runs independent build contexts concurrently. Garbage
	// collection still only runs once, after every build has returned,
	// so the "files present afterward are exactly this run's set"
	// invariant holds regardless of this setting.
	Parallel bool

	Log zerolog.Logger
}

// Build builds (or reuses) an archive for each build context in order,
// returning the corresponding image IDs, then garbage-collects any
// other archive left in Dir from a previous run.
func (b *Builder) Build(ctx context.Context, buildContexts []string) ([]string, error) {
	if err := b.Fs.MkdirAll(b.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workbench directory %q: %w", b.Dir, err)
	}

	ids := make([]string, len(buildContexts))
	if b.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, buildContext := range buildContexts {
			i, buildContext := i, buildContext
			g.Go(func() error {
				id, err := b.buildOne(gctx, buildContext)
				if err != nil {
					return err
				}
				ids[i] = id
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, buildContext := range buildContexts {
			id, err := b.buildOne(ctx, buildContext)
			if err != nil {
				return nil, err
			}
			ids[i] = id
		}
	}

	if err := b.collectGarbage(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// buildOne builds a single context, reusing an already-valid archive on
// disk instead of saving again (spec.md §4.1's cache-reuse rule).
func (b *Builder) buildOne(ctx context.Context, buildContext string) (string, error) {
	id, err := b.Engine.Build(ctx, buildContext)
	if err != nil {
		return "", fmt.Errorf("failed to build context %q: %w", buildContext, err)
	}

	path := b.archivePath(id)
	if ociarchive.Valid(b.Fs, path) {
		b.Log.Debug().Str("image", id).Str("path", path).Msg("reusing cached archive")
		return id, nil
	}

	if err := b.saveAtomically(ctx, id, path); err != nil {
		return "", err
	}
	return id, nil
}

func (b *Builder) archivePath(imageID string) string {
	return filepath.Join(b.Dir, imageID+".tar")
}

// saveAtomically writes the archive to a sibling temporary file and
// renames it into place, so a reader never observes a partially written
// `<image-id>.tar` (spec.md §4.1's atomicity guarantee). The engine
// writes to the temporary path it is given and b.Fs renames it; in
// tests the fake engine's Save writes through the same afero.Fs, so
// the rename sees the file it created.
func (b *Builder) saveAtomically(ctx context.Context, imageID, path string) error {
	tmp := path + ".tmp-" + uuid.NewString()
	if err := b.Engine.Save(ctx, imageID, tmp); err != nil {
		return fmt.Errorf("failed to save image %q: %w", imageID, err)
	}
	if err := b.Fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize archive %q: %w", path, err)
	}
	return nil
}

// collectGarbage removes every entry in Dir that isn't one of this
// run's produced image IDs, in ascending lexicographic order (spec.md
// §4.1 and Testable Property 5).
func (b *Builder) collectGarbage(ids []string) error {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[filepath.Base(b.archivePath(id))] = true
	}

	entries, err := afero.ReadDir(b.Fs, b.Dir)
	if err != nil {
		return fmt.Errorf("failed to list workbench directory %q: %w", b.Dir, err)
	}

	var obsolete []string
	for _, entry := range entries {
		if !keep[entry.Name()] {
			obsolete = append(obsolete, entry.Name())
		}
	}
	sort.Strings(obsolete)

	for _, name := range obsolete {
		path := filepath.Join(b.Dir, name)
		if err := b.Fs.Remove(path); err != nil {
			return fmt.Errorf("failed to remove obsolete archive %q: %w", path, err)
		}
		b.Log.Info().Str("path", path).Msg("removed obsolete archive")
	}
	return nil
}
