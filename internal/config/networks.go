package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/igwedaniel/dripper/internal/types"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Networks maps a network key to its profile
type Networks map[string]types.NetworkProfile

type networksFile struct {
	Networks map[string]types.NetworkProfile `yaml:"networks"`
}

var envPlaceholder = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)

// LoadNetworks reads network profiles from a YAML (or JSON) file. ${VAR}
// placeholders are replaced from the environment before parsing.
func LoadNetworks(path string, logger *logrus.Logger) (Networks, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}

	b = envPlaceholder.ReplaceAllFunc(b, func(m []byte) []byte {
		key := string(envPlaceholder.FindSubmatch(m)[1])
		val := os.Getenv(key)
		if val == "" {
			logger.Warnf("Environment variable %s is empty while expanding %s", key, path)
		}
		return []byte(val)
	})

	var file networksFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(file.Networks) == 0 {
		return nil, fmt.Errorf("%s: no networks defined", path)
	}

	out := make(Networks, len(file.Networks))
	for key, profile := range file.Networks {
		if profile.RPC == "" && profile.FaucetAPI == "" {
			return nil, fmt.Errorf("%s: network %q needs an rpc or a faucetApi", path, key)
		}
		profile.Key = key
		if profile.Name == "" {
			profile.Name = key
		}
		out[key] = profile
	}
	return out, nil
}

// Get returns the profile for key
func (n Networks) Get(key string) (types.NetworkProfile, error) {
	profile, ok := n[key]
	if !ok {
		return types.NetworkProfile{}, fmt.Errorf("unknown network %q (known: %v)", key, n.Keys())
	}
	return profile, nil
}

// Keys returns the network keys in sorted order
func (n Networks) Keys() []string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
