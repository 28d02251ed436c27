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

package transport

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder captures the argv used to build each command and substitutes
// the real "true" binary so exec.Cmd.Run succeeds without shelling out
// to rsync or ssh.
type recorder struct {
	calls [][]string
}

func (r *recorder) newCmd(ctx context.Context, name string, args ...string) *exec.Cmd {
	r.calls = append(r.calls, append([]string{name}, args...))
	return exec.CommandContext(ctx, "true")
}

func TestSynchronizeQuotesSSHConfigurationPath(t *testing.T) {
	rec := &recorder{}
	transport := New(Config{
		SSHConfiguration: "/etc/wheelsticks/ssh with spaces.conf",
		DeployUser:       "deploy",
		SSHHost:          "prod-1",
		LocalWorkbench:   "/var/lib/wheelsticks/workbench",
		RemoteWorkbench:  "/home/deploy/workbench",
	})
	transport.NewCmd = rec.newCmd

	require.NoError(t, transport.Synchronize(context.Background()))

	require.Len(t, rec.calls, 1)
	call := rec.calls[0]
	require.Equal(t, "rsync", call[0])

	rshIndex := indexOf(call, "--rsh")
	require.GreaterOrEqual(t, rshIndex, 0)
	rsh := call[rshIndex+1]
	require.True(t, strings.Contains(rsh, "'/etc/wheelsticks/ssh with spaces.conf'") ||
		strings.Contains(rsh, `"/etc/wheelsticks/ssh with spaces.conf"`),
		"expected the ssh configuration path to be shell-quoted, got %q", rsh)

	require.Contains(t, call, "deploy@prod-1:/home/deploy/workbench")
	require.Contains(t, call, "/var/lib/wheelsticks/workbench/")
}

func TestReconcilePassesRemoteWorkbenchEnv(t *testing.T) {
	rec := &recorder{}
	transport := New(Config{
		SSHConfiguration: "/etc/wheelsticks/ssh.conf",
		DeployUser:       "deploy",
		SSHHost:          "prod-1",
		RemoteWorkbench:  "/home/deploy/workbench",
		RemoteReconciler: "/home/deploy/workbench/wheelsticks-reconcile",
	})
	transport.NewCmd = rec.newCmd

	require.NoError(t, transport.Reconcile(context.Background()))

	require.Len(t, rec.calls, 1)
	call := rec.calls[0]
	require.Equal(t, "ssh", call[0])
	require.Contains(t, call, "WHEELSTICKS_REMOTE_WORKBENCH=/home/deploy/workbench")
	require.Contains(t, call, "/home/deploy/workbench/wheelsticks-reconcile")
}

func indexOf(haystack []string, needle string) int {
	for i, s := range haystack {
		if s == needle {
			return i
		}
	}
	return -1
}
