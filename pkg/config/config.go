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

// Package config reads the recognized environment surface (spec.md §6)
// plus an optional YAML overlay file. It used to be pkg/env, a
// reflect-based marshaler that only wrote environment files for the
// remote side; the same struct-tag convention now drives reading
// instead. Nothing in this package writes configuration back out.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the configuration surface of spec.md §6. Every field is read
// from an env var named by its `env` tag; `legacy` names a deprecated
// alias from the tool's previous incarnation (KEREK_*) that is honored
// with a one-time warning.
type Config struct {
	BuildContexts    []string `env:"WHEELSTICKS_BUILD_CONTEXTS" legacy:"KEREK_BUILD_CONTEXTS" yaml:"buildContexts"`
	LocalWorkbench   string   `env:"WHEELSTICKS_LOCAL_WORKBENCH" legacy:"KEREK_CACHE_WORKBENCH" yaml:"localWorkbench"`
	RemoteWorkbench  string   `env:"WHEELSTICKS_REMOTE_WORKBENCH" legacy:"KEREK_REMOTE_WORKBENCH" yaml:"remoteWorkbench"`
	SSHHost          string   `env:"WHEELSTICKS_SSH_HOST" legacy:"KEREK_SSH_HOST" yaml:"sshHost"`
	SSHConfiguration string   `env:"WHEELSTICKS_SSH_CONFIGURATION" legacy:"KEREK_SSH_CONFIGURATION" yaml:"sshConfiguration"`
	DeployUser       string   `env:"WHEELSTICKS_DEPLOY_USER" legacy:"KEREK_DEPLOY_USER" yaml:"deployUser"`
	Playbook         string   `env:"WHEELSTICKS_PLAYBOOK" legacy:"KEREK_PLAYBOOK" yaml:"playbook"`
}

// MissingError is a configuration error (spec.md §7): a required key was
// never set, reported with the offending key.
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required configuration key %q", e.Key)
}

// Load reads the configuration surface: an optional YAML overlay at
// yamlPath (ignored if it doesn't exist) supplies defaults, then
// environment variables (current name, falling back to the legacy
// KEREK_* alias) override them.
func Load(yamlPath string) (*Config, error) {
	var cfg Config
	if yamlPath != "" {
		if b, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse configuration file %q: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", yamlPath, err)
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	rv := reflect.ValueOf(cfg).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}

		value, ok := os.LookupEnv(envKey)
		if !ok {
			legacyKey := field.Tag.Get("legacy")
			if legacyKey == "" {
				continue
			}
			value, ok = os.LookupEnv(legacyKey)
			if !ok {
				continue
			}
			log.Warn().Str("legacy_key", legacyKey).Str("key", envKey).
				Msg("using deprecated environment variable name")
		}

		fv := rv.Field(i)
		switch fv.Kind() {
		case reflect.String:
			fv.SetString(value)
		case reflect.Slice:
			if fv.Type().Elem().Kind() == reflect.String {
				fv.Set(reflect.ValueOf(splitList(value)))
			}
		}
	}
}

// splitList parses a colon-separated list (spec.md §6's BUILD_CONTEXTS
// form), dropping empty segments so a trailing/leading colon is harmless.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ":") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// KeyValue names a configuration value for Require's error reporting.
type KeyValue struct {
	Key   string
	Value string
}

func KV(key, value string) KeyValue { return KeyValue{Key: key, Value: value} }

// Require fails with a *MissingError naming the first unset key among
// the given pairs. Each subcommand calls this with only the keys its
// phase actually needs, per spec.md §6/§7.
func Require(pairs ...KeyValue) error {
	for _, p := range pairs {
		if p.Value == "" {
			return &MissingError{Key: p.Key}
		}
	}
	return nil
}

// RequireList is like Require but for the one list-valued key.
func RequireList(key string, value []string) error {
	if len(value) == 0 {
		return &MissingError{Key: key}
	}
	return nil
}
