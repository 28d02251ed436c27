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

// Package planner computes the ordered, cancellation-reduced list of
// container changes described in spec.md §4.4. It has no side effects
// and no dependency on the engine: it is pure data in, pure data out,
// which is what makes it testable against recorded fixtures (spec.md
// §9's "narrow engine-command abstraction" design note).
package planner

import (
	"fmt"
	"sort"

	digest "github.com/opencontainers/go-digest"

	"github.com/evolutics/wheelsticks/pkg/metadata"
)

// Operator is the tagged variant spec.md §9 asks for in place of a
// string-typed operator.
type Operator int

const (
	ADD Operator = iota
	KEEP
	REMOVE
)

func (o Operator) String() string {
	switch o {
	case ADD:
		return "ADD"
	case KEEP:
		return "KEEP"
	case REMOVE:
		return "REMOVE"
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// ContainerChange is the planner's output element (spec.md §3).
type ContainerChange struct {
	ContainerName string
	ImageID       string
	ImageDigest   digest.Digest
	Networks      []string
	PortMappings  []string
	VolumeMounts  []string
	HealthCheck   string
	Operator      Operator
}

// UnitName is the derived systemd unit name (spec.md §3).
func (c ContainerChange) UnitName() string {
	return fmt.Sprintf("container-%s.service", c.ContainerName)
}

// Plan computes the ordered change list for the given actual and target
// image sets (spec.md §4.4, steps 1-4).
func Plan(actual, target []metadata.Image) []ContainerChange {
	changes := expand(actual, target)
	stableSortByContainerName(changes)
	return foldCancelChurn(changes)
}

// expand emits one REMOVE per container name of every actual image,
// then one ADD per container name of every target image. Removals
// precede additions in this pre-sort order (spec.md §4.4 step 1).
func expand(actual, target []metadata.Image) []ContainerChange {
	var changes []ContainerChange
	for _, image := range actual {
		changes = append(changes, changesFor(image, REMOVE)...)
	}
	for _, image := range target {
		changes = append(changes, changesFor(image, ADD)...)
	}
	return changes
}

func changesFor(image metadata.Image, operator Operator) []ContainerChange {
	changes := make([]ContainerChange, 0, len(image.Intent.ContainerNames))
	for _, name := range image.Intent.ContainerNames {
		changes = append(changes, ContainerChange{
			ContainerName: name,
			ImageID:       image.ImageID,
			ImageDigest:   image.Digest,
			Networks:      image.Intent.Networks,
			PortMappings:  image.Intent.PortMappings,
			VolumeMounts:  image.Intent.VolumeMounts,
			HealthCheck:   image.Intent.HealthCheck,
			Operator:      operator,
		})
	}
	return changes
}

// stableSortByContainerName sorts by container name ascending (spec.md
// §4.4 step 2); Go's sort.SliceStable preserves the REMOVE-before-ADD
// emission order for equal keys.
func stableSortByContainerName(changes []ContainerChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].ContainerName < changes[j].ContainerName
	})
}

// foldCancelChurn scans left to right, collapsing a REMOVE immediately
// followed by an ADD for the same container name and image digest into
// a single KEEP (spec.md §4.4 step 3).
func foldCancelChurn(changes []ContainerChange) []ContainerChange {
	folded := make([]ContainerChange, 0, len(changes))
	for _, c := range changes {
		if n := len(folded); n > 0 && cancels(folded[n-1], c) {
			folded[n-1].Operator = KEEP
			continue
		}
		folded = append(folded, c)
	}
	return folded
}

func cancels(previous, next ContainerChange) bool {
	return previous.Operator == REMOVE &&
		next.Operator == ADD &&
		previous.ContainerName == next.ContainerName &&
		previous.ImageDigest == next.ImageDigest
}
