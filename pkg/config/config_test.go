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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "wheelsticks.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("sshHost: from-yaml\ndeployUser: yaml-user\n"), 0644))

	t.Setenv("WHEELSTICKS_SSH_HOST", "from-env")
	t.Setenv("WHEELSTICKS_BUILD_CONTEXTS", "a:b:c")

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.SSHHost)
	require.Equal(t, "yaml-user", cfg.DeployUser)
	require.Equal(t, []string{"a", "b", "c"}, cfg.BuildContexts)
}

func TestLoadLegacyAlias(t *testing.T) {
	t.Setenv("KEREK_SSH_HOST", "legacy-host")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "legacy-host", cfg.SSHHost)
}

func TestRequireReportsMissingKey(t *testing.T) {
	err := Require(KV("WHEELSTICKS_SSH_HOST", ""), KV("WHEELSTICKS_DEPLOY_USER", "x"))
	require.Error(t, err)
	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "WHEELSTICKS_SSH_HOST", missing.Key)
}

func TestSplitListDropsEmptySegments(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitList(":a::b:"))
	require.Nil(t, splitList(""))
}
