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

// Package provision wraps ansible-playbook for one-off host setup
// ahead of a deploy (supplementing the distributed spec, which covers
// only build/deploy/reconcile, with the provisioning step
// original_source's subcommand/provision/provision.py performs: a
// single-host inventory and an ssh -F config shared with the rest of
// the toolchain).
package provision

import (
	"context"
	"fmt"
	"os/exec"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/evolutics/wheelsticks/pkg/cmdutil"
)

// Config names the single target host and the playbook to run against
// it.
type Config struct {
	SSHHost          string
	SSHConfiguration string
	Playbook         string
}

type NewCmdFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Provisioner runs ansible-playbook with its stdout/stderr streamed
// straight to this process's own, so an operator sees its progress.
type Provisioner struct {
	Config
	NewCmd NewCmdFunc
}

func New(config Config) *Provisioner {
	return &Provisioner{
		Config: config,
		NewCmd: cmdutil.NewStdCmd,
	}
}

// Run invokes ansible-playbook against a single-host, comma-prefixed
// inventory string (the form Ansible requires for an inventory of one
// literal host rather than a group file).
func (p *Provisioner) Run(ctx context.Context) error {
	sshArgs := shellquote.Join("-F", p.SSHConfiguration)
	cmd := p.NewCmd(ctx, "ansible-playbook",
		"--inventory", ","+p.SSHHost,
		"--ssh-common-args", sshArgs,
		"--",
		p.Playbook,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to provision %s: %w", p.SSHHost, err)
	}
	return nil
}
