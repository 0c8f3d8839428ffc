// Package config assembles the flat option map of a run from a parameter
// file, environment variables, command-line flags and key=value overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrAssignment indicates a malformed key=value override.
var ErrAssignment = errors.New("config: bad assignment")

// DefaultEnvPrefix prefixes option environment variables, e.g. MSTRANSFORM_SPW.
const DefaultEnvPrefix = "MSTRANSFORM"

// Source lists where options come from. Later sources win: file, then
// environment, then changed flags, then Set.
type Source struct {
	// File is a yaml, json or toml parameter file; the extension picks the format.
	File string
	// Flags contributes the flags the user set explicitly.
	Flags *pflag.FlagSet
	// Set holds key=value overrides; values are read as YAML scalars or lists.
	Set []string
	// Keys restricts flags and environment variables to option keys. File
	// and Set keys are passed through unchecked.
	Keys []string
	// EnvPrefix defaults to DefaultEnvPrefix.
	EnvPrefix string
}

// Load returns the merged option map with lower-case keys.
func Load(src Source) (map[string]any, error) {
	v := viper.New()

	if src.File != "" {
		v.SetConfigFile(src.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", src.File, err)
		}
	}

	prefix := src.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	for _, k := range src.Keys {
		if err := v.BindEnv(k, prefix+"_"+strings.ToUpper(k)); err != nil {
			return nil, err
		}
	}

	if src.Flags != nil {
		allowed := make(map[string]bool, len(src.Keys))
		for _, k := range src.Keys {
			allowed[k] = true
		}

		var bindErr error
		src.Flags.Visit(func(f *pflag.Flag) {
			if bindErr != nil || !allowed[f.Name] {
				return
			}
			bindErr = v.BindPFlag(f.Name, f)
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	for _, a := range src.Set {
		k, val, err := ParseAssignment(a)
		if err != nil {
			return nil, err
		}
		v.Set(k, val)
	}

	return v.AllSettings(), nil
}

// ParseAssignment splits "key=value". The value is decoded as YAML, so
// "true", "2" and "[2, 4]" arrive typed; an empty value is the empty string.
func ParseAssignment(s string) (string, any, error) {
	k, raw, ok := strings.Cut(s, "=")
	k = strings.ToLower(strings.TrimSpace(k))
	if !ok || k == "" {
		return "", nil, fmt.Errorf("%w: %q", ErrAssignment, s)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return k, "", nil
	}

	var val any
	if err := yaml.Unmarshal([]byte(raw), &val); err != nil {
		return "", nil, fmt.Errorf("%w: %q: %v", ErrAssignment, s, err)
	}

	return k, val, nil
}
