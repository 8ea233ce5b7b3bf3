package supervisor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/agentdeck/agentdeck/internal/common/errors"
)

// Profile is one named launch configuration from the profiles file.
type Profile struct {
	// Binary overrides resolution when set.
	Binary string `yaml:"binary"`

	// Candidates are absolute paths probed in order.
	Candidates []string `yaml:"candidates"`

	// Args are appended after the wire-format args, before the prompt.
	Args []string `yaml:"args"`

	// Env entries are merged over the inherited environment.
	Env map[string]string `yaml:"env"`
}

// Profiles maps profile name to launch configuration.
type Profiles map[string]Profile

// LoadProfiles reads the optional YAML profiles file. An empty path or a
// missing file yields an empty set.
func LoadProfiles(path string) (Profiles, error) {
	if path == "" {
		return Profiles{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Profiles{}, nil
	}
	if err != nil {
		return nil, err
	}

	var profiles Profiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if profiles == nil {
		profiles = Profiles{}
	}
	return profiles, nil
}

// Lookup resolves a profile by name. The empty name means no profile.
func (p Profiles) Lookup(name string) (*Profile, error) {
	if name == "" {
		return nil, nil
	}
	profile, ok := p[name]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("launch profile %s not found", name))
	}
	return &profile, nil
}
