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

// Package engine is the narrow container-engine-command abstraction
// spec.md §9 asks for: every subprocess invocation the rest of the
// program needs is behind this interface, so the planner and applier
// can be unit-tested against a fake instead of a real podman binary
// (grounded on pkg/svc/docker.go's command()/runCommand() wrapping of
// exec.Cmd, generalized from "docker compose" to the bare engine
// commands of spec.md §6's command contract).
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/evolutics/wheelsticks/pkg/cmdutil"
	"github.com/evolutics/wheelsticks/pkg/metadata"
)

// ErrNetworkNotFound is the "expected engine signal" of spec.md §7:
// `network exists` exiting 1 means absent, not an error.
var ErrNetworkNotFound = errors.New("network not found")

// Engine is the set of operations spec.md §6's engine command contract
// relies on.
type Engine interface {
	// Build runs a quiet build over the given context, returning the
	// trimmed image ID from standard output.
	Build(ctx context.Context, buildContext string) (string, error)
	// Save writes an OCI-archive of imageID to path.
	Save(ctx context.Context, imageID, path string) error
	// Load loads an OCI-archive from path.
	Load(ctx context.Context, path string) error
	// Images returns every image record known to the engine.
	Images(ctx context.Context) ([]metadata.EngineRecord, error)

	// NetworkExists probes for a network's existence. A nil error means
	// it exists; ErrNetworkNotFound means it was absent.
	NetworkExists(ctx context.Context, name string) error
	NetworkCreate(ctx context.Context, name string) error

	// Create creates (but does not start) a container.
	Create(ctx context.Context, spec ContainerSpec) error
	Rm(ctx context.Context, containerName string) error

	// HealthcheckRun runs the container's declared health check once.
	// A nil error means healthy.
	HealthcheckRun(ctx context.Context, containerName string, timeout time.Duration) error

	// GenerateSystemd renders a user-scope unit file for containerName
	// into dir and returns its path.
	GenerateSystemd(ctx context.Context, containerName, dir string) (string, error)

	SystemPrune(ctx context.Context) error
}

// ContainerSpec is everything needed to create a container (spec.md
// §4.5's ADD step).
type ContainerSpec struct {
	Name         string
	ImageID      string
	HealthCheck  string
	Networks     []string
	PortMappings []string
	VolumeMounts []string
}

// NewCmdFunc builds the subprocess for the engine calls that parse or
// trim their own output (Build, Images, GenerateSystemd) rather than
// stream it, so unlike pkg/cmdutil.NewStdCmd it must leave stdio
// unconnected for cmd.Output() to capture.
type NewCmdFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Podman is the production Engine, shelling out to the podman CLI per
// spec.md §6 rather than linking libpod directly -- see DESIGN.md for
// why this repo does not adopt containers/podman/v5 as a library
// dependency despite it appearing in the pack.
type Podman struct {
	Bin    string // defaults to "podman"
	NewCmd NewCmdFunc
}

// NewPodman returns a Podman engine using exec.CommandContext directly.
func NewPodman() *Podman {
	return &Podman{
		Bin: "podman",
		NewCmd: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, name, args...)
		},
	}
}

func (p *Podman) bin() string {
	if p.Bin != "" {
		return p.Bin
	}
	return "podman"
}

func (p *Podman) cmd(ctx context.Context, args ...string) *exec.Cmd {
	return p.NewCmd(ctx, p.bin(), args...)
}

// stdCmd builds a command for engine calls that only care about the
// exit code, streaming the subprocess's own stdout/stderr through
// instead of discarding it.
func (p *Podman) stdCmd(ctx context.Context, args ...string) *exec.Cmd {
	return cmdutil.NewStdCmd(ctx, p.bin(), args...)
}

func (p *Podman) Build(ctx context.Context, buildContext string) (string, error) {
	cmd := p.cmd(ctx, "build", "--quiet", "--", buildContext)
	out, err := cmd.Output()
	if err != nil {
		return "", engineError(cmd, err)
	}
	return trimTrailingNewline(out), nil
}

func (p *Podman) Save(ctx context.Context, imageID, path string) error {
	cmd := p.stdCmd(ctx, "save", "--format", "oci-archive", "--output", path, "--", imageID)
	if err := cmd.Run(); err != nil {
		return engineError(cmd, err)
	}
	return nil
}

func (p *Podman) Load(ctx context.Context, path string) error {
	cmd := p.stdCmd(ctx, "load", "--input", path)
	if err := cmd.Run(); err != nil {
		return engineError(cmd, err)
	}
	return nil
}

func (p *Podman) Images(ctx context.Context) ([]metadata.EngineRecord, error) {
	cmd := p.cmd(ctx, "images", "--format", "json")
	out, err := cmd.Output()
	if err != nil {
		return nil, engineError(cmd, err)
	}
	var records []metadata.EngineRecord
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, fmt.Errorf("failed to parse `podman images` output: %w", err)
	}
	return records, nil
}

func (p *Podman) NetworkExists(ctx context.Context, name string) error {
	cmd := p.stdCmd(ctx, "network", "exists", "--", name)
	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return ErrNetworkNotFound
	}
	return engineError(cmd, err)
}

func (p *Podman) NetworkCreate(ctx context.Context, name string) error {
	cmd := p.stdCmd(ctx, "network", "create", "--", name)
	if err := cmd.Run(); err != nil {
		return engineError(cmd, err)
	}
	return nil
}

func (p *Podman) Create(ctx context.Context, spec ContainerSpec) error {
	args := []string{"create"}
	if spec.HealthCheck != "" {
		args = append(args, "--health-cmd="+spec.HealthCheck)
	}
	args = append(args, "--name", spec.Name)
	for _, network := range spec.Networks {
		args = append(args, "--network="+network)
	}
	for _, port := range spec.PortMappings {
		args = append(args, "--publish="+port)
	}
	for _, volume := range spec.VolumeMounts {
		args = append(args, "--volume="+volume)
	}
	args = append(args, "--", spec.ImageID)

	cmd := p.stdCmd(ctx, args...)
	if err := cmd.Run(); err != nil {
		return engineError(cmd, err)
	}
	return nil
}

func (p *Podman) Rm(ctx context.Context, containerName string) error {
	cmd := p.stdCmd(ctx, "rm", "--", containerName)
	if err := cmd.Run(); err != nil {
		return engineError(cmd, err)
	}
	return nil
}

// HealthcheckRun runs the healthcheck once, bounded by timeout. A
// deadline overrun surfaces as context.DeadlineExceeded specifically
// (rather than the generic engine error every other non-zero exit
// produces), so a caller implementing the doubling-backoff gate of
// spec.md §4.5 can tell "ran and reported unhealthy" apart from "never
// finished in time".
func (p *Podman) HealthcheckRun(ctx context.Context, containerName string, timeout time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := p.stdCmd(cctx, "healthcheck", "run", containerName)
	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return context.DeadlineExceeded
		}
		return engineError(cmd, err)
	}
	return nil
}

func (p *Podman) GenerateSystemd(ctx context.Context, containerName, dir string) (string, error) {
	cmd := p.cmd(ctx, "generate", "systemd", "--files", "--name", "--restart-policy", "always", "--", containerName)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", engineError(cmd, err)
	}
	path := firstLine(out)
	if path == "" {
		return "", fmt.Errorf("podman generate systemd produced no file path")
	}
	return path, nil
}

// firstLine returns the first non-empty line of `podman generate
// systemd --files`'s output, which prints one written unit path per
// line.
func firstLine(b []byte) string {
	for _, line := range bytesSplitLines(b) {
		if line != "" {
			return line
		}
	}
	return ""
}

func bytesSplitLines(b []byte) []string {
	var lines []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, trimTrailingNewline(b[start:i]))
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, trimTrailingNewline(b[start:]))
	}
	return lines
}

func (p *Podman) SystemPrune(ctx context.Context) error {
	cmd := p.stdCmd(ctx, "system", "prune", "--all", "--force", "--volumes")
	if err := cmd.Run(); err != nil {
		return engineError(cmd, err)
	}
	return nil
}

func trimTrailingNewline(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}

// engineError is spec.md §7's "Engine error": any non-zero exit not
// otherwise interpreted, re-raised with the command line for diagnosis.
func engineError(cmd *exec.Cmd, err error) error {
	return fmt.Errorf("engine command %q failed: %w", cmd.Args, err)
}
