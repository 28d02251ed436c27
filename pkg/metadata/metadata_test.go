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

package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVFieldsEmptyOrMissingYieldsEmptySequence(t *testing.T) {
	require.Nil(t, csvFields(""))
}

func TestCSVFieldsRoundTrip(t *testing.T) {
	fields := []string{"web-0", "web-1", `has "quote"`}
	encoded, err := EncodeCSV(fields)
	require.NoError(t, err)
	require.Equal(t, fields, csvFields(encoded))
}

func TestParseFillsIntentFromLabels(t *testing.T) {
	record := EngineRecord{
		Id:         "abc123",
		Digest:     "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Containers: 2,
		Labels: map[string]string{
			LabelContainerNames: "web-0,web-1",
			LabelNetworks:       "frontend",
			LabelPortMappings:   "8080:80",
			LabelHealthCheck:    "curl -f http://localhost/health",
		},
	}

	img, err := Parse(record)
	require.NoError(t, err)
	require.Equal(t, "abc123", img.ImageID)
	require.Equal(t, 2, img.ContainerCount)
	require.Equal(t, []string{"web-0", "web-1"}, img.Intent.ContainerNames)
	require.Equal(t, []string{"frontend"}, img.Intent.Networks)
	require.Equal(t, []string{"8080:80"}, img.Intent.PortMappings)
	require.Nil(t, img.Intent.VolumeMounts)
	require.Equal(t, "curl -f http://localhost/health", img.Intent.HealthCheck)
}

func TestParseRejectsMalformedDigest(t *testing.T) {
	_, err := Parse(EngineRecord{Id: "abc123", Digest: "not-a-digest"})
	require.Error(t, err)
}

func TestParseMissingLabelsDefaultToEmpty(t *testing.T) {
	img, err := Parse(EngineRecord{Id: "abc123"})
	require.NoError(t, err)
	require.Nil(t, img.Intent.ContainerNames)
	require.Nil(t, img.Intent.Networks)
	require.Nil(t, img.Intent.PortMappings)
	require.Nil(t, img.Intent.VolumeMounts)
	require.Empty(t, img.Intent.HealthCheck)
}
