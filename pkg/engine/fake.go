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

package engine

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/evolutics/wheelsticks/pkg/metadata"
)

// Fake is an in-memory Engine for exercising the planner/applier/
// reconciler against recorded fixtures instead of a real podman binary
// (spec.md §9's design note).
type Fake struct {
	mu sync.Mutex

	Images_       map[string]metadata.EngineRecord
	Networks      map[string]bool
	Containers    map[string]string // container name -> image ID
	Healthy       map[string]bool   // container name -> healthcheck result once HealthcheckQueue is empty
	LoadedFiles   []string
	Pruned        int
	FailNetworkOp map[string]error // network name -> forced error for exists/create

	// BuildResults maps a build context to the image ID Build returns
	// for it, for tests exercising the workbench builder.
	BuildResults map[string]string
	// Fs, if set, is where Save writes SavedContent (or a minimal valid
	// OCI archive if SavedContent is empty), so a workbench builder under
	// test observes real bytes through the same afero.Fs it lists and
	// renames through.
	Fs           afero.Fs
	SavedContent []byte
	SavedTo      []string

	// HealthcheckAttempts counts calls per container, for tests that
	// assert on backoff behavior.
	HealthcheckAttempts map[string]int
	// HealthcheckQueue holds, per container, the errors to return on
	// successive HealthcheckRun calls (context.DeadlineExceeded
	// simulates a timed-out run, any other non-nil error simulates a
	// healthcheck that ran and reported unhealthy); once the queue is
	// exhausted, calls succeed only if Healthy is set for the container.
	HealthcheckQueue map[string][]error
}

func NewFake() *Fake {
	return &Fake{
		Images_:             map[string]metadata.EngineRecord{},
		Networks:            map[string]bool{},
		Containers:          map[string]string{},
		Healthy:             map[string]bool{},
		FailNetworkOp:       map[string]error{},
		BuildResults:        map[string]string{},
		HealthcheckAttempts: map[string]int{},
		HealthcheckQueue:    map[string][]error{},
	}
}

// AddImage registers an image record as loaded/known to the fake
// engine, for tests to set up "actual"/"target" fixtures.
func (f *Fake) AddImage(record metadata.EngineRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Images_[record.Id] = record
}

func (f *Fake) Build(ctx context.Context, buildContext string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.BuildResults[buildContext]; ok {
		return id, nil
	}
	return "", fmt.Errorf("Fake.Build not configured for context %q; set BuildResults", buildContext)
}

// Save writes SavedContent (or a minimal valid OCI archive, if unset) to
// path through Fs, if one was given; a Fake with no Fs behaves as a
// no-op, for tests that don't exercise the workbench's cache-reuse path.
func (f *Fake) Save(ctx context.Context, imageID, path string) error {
	f.mu.Lock()
	f.SavedTo = append(f.SavedTo, path)
	fs := f.Fs
	content := f.SavedContent
	f.mu.Unlock()

	if fs == nil {
		return nil
	}
	if len(content) == 0 {
		content = defaultOCIArchive()
	}
	return afero.WriteFile(fs, path, content, 0o644)
}

// defaultOCIArchive builds a minimal tar containing a well-formed
// index.json, the same shape ociarchive.Valid checks for.
func defaultOCIArchive() []byte {
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	index := []byte(`{"schemaVersion":2,"manifests":[{"mediaType":"application/vnd.oci.image.manifest.v1+json","digest":"sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85","size":2}]}`)
	_ = w.WriteHeader(&tar.Header{Name: "index.json", Size: int64(len(index))})
	_, _ = w.Write(index)
	_ = w.Close()
	return buf.Bytes()
}

func (f *Fake) Load(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoadedFiles = append(f.LoadedFiles, path)
	return nil
}

func (f *Fake) Images(ctx context.Context) ([]metadata.EngineRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]metadata.EngineRecord, 0, len(f.Images_))
	for _, r := range f.Images_ {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (f *Fake) NetworkExists(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailNetworkOp[name]; ok {
		return err
	}
	if f.Networks[name] {
		return nil
	}
	return ErrNetworkNotFound
}

func (f *Fake) NetworkCreate(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailNetworkOp[name]; ok {
		return err
	}
	f.Networks[name] = true
	return nil
}

func (f *Fake) Create(ctx context.Context, spec ContainerSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Containers[spec.Name] = spec.ImageID
	return nil
}

func (f *Fake) Rm(ctx context.Context, containerName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Containers, containerName)
	return nil
}

func (f *Fake) HealthcheckRun(ctx context.Context, containerName string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HealthcheckAttempts[containerName]++

	if queue := f.HealthcheckQueue[containerName]; len(queue) > 0 {
		f.HealthcheckQueue[containerName] = queue[1:]
		return queue[0]
	}
	if f.Healthy[containerName] {
		return nil
	}
	return fmt.Errorf("container %q not healthy yet", containerName)
}

func (f *Fake) GenerateSystemd(ctx context.Context, containerName, dir string) (string, error) {
	return filepath.Join(dir, fmt.Sprintf("container-%s.service", containerName)), nil
}

func (f *Fake) SystemPrune(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pruned++
	return nil
}

var _ Engine = (*Fake)(nil)
