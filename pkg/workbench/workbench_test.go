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

package workbench

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/evolutics/wheelsticks/pkg/engine"
)

func newBuilder(fake *engine.Fake, fs afero.Fs) *Builder {
	fake.Fs = fs
	return &Builder{Fs: fs, Engine: fake, Dir: "/workbench"}
}

func TestBuildSavesNewArchives(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := engine.NewFake()
	fake.BuildResults = map[string]string{
		"./web": "AAA",
		"./db":  "BBB",
	}
	b := newBuilder(fake, fs)

	ids, err := b.Build(context.Background(), []string{"./web", "./db"})

	require.NoError(t, err)
	require.Equal(t, []string{"AAA", "BBB"}, ids)
	for _, id := range ids {
		exists, err := afero.Exists(fs, b.archivePath(id))
		require.NoError(t, err)
		require.True(t, exists, "expected archive for %s", id)
	}
	require.Len(t, fake.SavedTo, 2)
}

func TestBuildReusesValidCachedArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := engine.NewFake()
	fake.BuildResults = map[string]string{"./web": "AAA"}
	b := newBuilder(fake, fs)

	_, err := b.Build(context.Background(), []string{"./web"})
	require.NoError(t, err)
	require.Len(t, fake.SavedTo, 1)

	_, err = b.Build(context.Background(), []string{"./web"})
	require.NoError(t, err)
	require.Len(t, fake.SavedTo, 1, "second run should reuse the cached archive without saving again")
}

func TestBuildResavesWhenCachedArchiveIsCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := engine.NewFake()
	fake.BuildResults = map[string]string{"./web": "AAA"}
	b := newBuilder(fake, fs)

	require.NoError(t, afero.WriteFile(fs, b.archivePath("AAA"), []byte("not a tar"), 0o644))

	_, err := b.Build(context.Background(), []string{"./web"})

	require.NoError(t, err)
	require.Len(t, fake.SavedTo, 1)
}

func TestBuildGarbageCollectsObsoleteArchives(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := engine.NewFake()
	fake.BuildResults = map[string]string{"./web": "AAA"}
	b := newBuilder(fake, fs)

	require.NoError(t, fs.MkdirAll(b.Dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, b.archivePath("OLD1"), []byte("stale"), 0o644))
	require.NoError(t, afero.WriteFile(fs, b.archivePath("OLD2"), []byte("stale"), 0o644))

	_, err := b.Build(context.Background(), []string{"./web"})
	require.NoError(t, err)

	entries, err := afero.ReadDir(fs, b.Dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	require.ElementsMatch(t, []string{"AAA.tar"}, names)
}

func TestBuildParallelProducesSameGarbageCollectionResult(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := engine.NewFake()
	fake.BuildResults = map[string]string{
		"./web": "AAA",
		"./db":  "BBB",
	}
	b := newBuilder(fake, fs)
	b.Parallel = true

	require.NoError(t, fs.MkdirAll(b.Dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, b.archivePath("OLD"), []byte("stale"), 0o644))

	ids, err := b.Build(context.Background(), []string{"./web", "./db"})

	require.NoError(t, err)
	require.ElementsMatch(t, []string{"AAA", "BBB"}, ids)

	entries, err := afero.ReadDir(fs, b.Dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	require.ElementsMatch(t, []string{"AAA.tar", "BBB.tar"}, names)
}

func TestBuildFailsWhenEngineBuildFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := engine.NewFake()
	b := newBuilder(fake, fs)

	_, err := b.Build(context.Background(), []string{"./unconfigured"})

	require.Error(t, err)
}
