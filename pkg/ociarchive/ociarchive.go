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

// Package ociarchive opens a `<image-id>.tar` artifact file (spec.md
// §3) and checks it really is an OCI image archive, rather than trusting
// a cache hit on filename alone. Adapted from pkg/targz's tar-walking
// Reader: that one assumes a gzip-wrapped tarball (the teacher used it
// for staged user uploads); an OCI archive produced by `podman save
// --format oci-archive` is a plain, uncompressed tar, so the gzip layer
// is dropped here. Reads go through afero.Fs rather than os directly, so
// the workbench's cache-hit check can be exercised against an in-memory
// filesystem in tests.
package ociarchive

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/afero"
)

// Valid reports whether path is a readable tar archive containing a
// top-level index.json that deserializes to an OCI image index with
// schema version 2 and at least one manifest. It returns no error: a
// missing, unreadable or malformed file, and any I/O failure while
// reading it, all report false.
func Valid(fs afero.Fs, path string) bool {
	f, err := fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	r := tar.NewReader(f)
	for {
		header, err := r.Next()
		if err == io.EOF {
			return false
		}
		if err != nil {
			return false
		}
		if header.Name != "index.json" {
			continue
		}

		var index v1.Index
		if err := json.NewDecoder(r).Decode(&index); err != nil {
			return false
		}
		return index.SchemaVersion == 2 && len(index.Manifests) > 0
	}
}

// Describe returns a short human-readable summary of the archive's
// index, for diagnostics; it is not used on the cache hot path.
func Describe(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	r := tar.NewReader(f)
	for {
		header, err := r.Next()
		if err == io.EOF {
			return "", fmt.Errorf("%q has no index.json", path)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %q: %w", path, err)
		}
		if header.Name != "index.json" {
			continue
		}
		var index v1.Index
		if err := json.NewDecoder(r).Decode(&index); err != nil {
			return "", fmt.Errorf("failed to parse index.json in %q: %w", path, err)
		}
		return fmt.Sprintf("oci archive, schema %d, %d manifest(s)", index.SchemaVersion, len(index.Manifests)), nil
	}
}
