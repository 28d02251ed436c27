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

// Package metadata decodes the reserved image-label namespace (spec.md
// §6) into the deployment intent carried by each image (spec.md §3).
package metadata

import (
	"encoding/csv"
	"fmt"
	"strings"

	digest "github.com/opencontainers/go-digest"
)

// Reserved label namespace (spec.md §6).
const (
	LabelContainerNames = "info.evolutics.wheelsticks.container-names"
	LabelNetworks       = "info.evolutics.wheelsticks.networks"
	LabelPortMappings   = "info.evolutics.wheelsticks.port-mappings"
	LabelVolumeMounts   = "info.evolutics.wheelsticks.volume-mounts"
	LabelHealthCheck    = "info.evolutics.wheelsticks.health-check"
)

// Intent is the deployment intent parsed from an image's labels
// (spec.md §3).
type Intent struct {
	ContainerNames []string
	Networks       []string
	PortMappings   []string
	VolumeMounts   []string
	HealthCheck    string // empty means no health check declared
}

// Image is an image record as seen on the engine (spec.md §3).
type Image struct {
	ImageID        string
	Digest         digest.Digest
	ContainerCount int
	Intent         Intent
}

// EngineRecord is the subset of `podman images --format json` fields
// the schema reads (spec.md §6's engine command contract).
type EngineRecord struct {
	Id         string
	Digest     string
	Containers int
	Labels     map[string]string
}

// Parse decodes one engine image record into an Image, validating the
// digest via opencontainers/go-digest rather than trusting it to be
// well-formed (spec.md §3's digest is "the equivalence key used by the
// planner" (a malformed one would silently break that equivalence).
func Parse(record EngineRecord) (Image, error) {
	d := digest.Digest(record.Digest)
	if record.Digest != "" {
		if err := d.Validate(); err != nil {
			return Image{}, fmt.Errorf("image %s: invalid digest %q: %w", record.Id, record.Digest, err)
		}
	}

	return Image{
		ImageID:        record.Id,
		Digest:         d,
		ContainerCount: record.Containers,
		Intent: Intent{
			ContainerNames: csvFields(record.Labels[LabelContainerNames]),
			Networks:       csvFields(record.Labels[LabelNetworks]),
			PortMappings:   csvFields(record.Labels[LabelPortMappings]),
			VolumeMounts:   csvFields(record.Labels[LabelVolumeMounts]),
			HealthCheck:    record.Labels[LabelHealthCheck],
		},
	}, nil
}

// csvFields decodes one label value as a single CSV record (spec.md
// §4.6): standard quoting rules, no header row, empty input yields an
// empty sequence.
func csvFields(value string) []string {
	if value == "" {
		return nil
	}
	r := csv.NewReader(strings.NewReader(value))
	var fields []string
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		fields = append(fields, record...)
	}
	return fields
}

// EncodeCSV is the inverse of csvFields, used by tooling (and tests)
// that need to write back a label value from a field list.
func EncodeCSV(fields []string) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(fields); err != nil {
		return "", fmt.Errorf("failed to encode CSV fields: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}
