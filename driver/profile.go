package driver

import (
	"fmt"
	"gopkg.in/ini.v1"
	"os"
	"path/filepath"
)

// DefaultProfilesFile is the profiles file below the home directory
const DefaultProfilesFile = ".dql/profiles.ini"

// LoadProfile reads the section name of an INI profiles file. Every key of
// the section is a DSN property, e.g.
//
//	[prod]
//	endpoint    = db1:8100,db2:8100
//	db          = shop
//	compression = zstd
func LoadProfile(path, name string) (map[string]string, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	sec, err := cfg.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("profile %q not found in %s", name, path)
	}

	props := make(map[string]string)
	for _, key := range sec.Keys() {
		if !isKnownProp(key.Name()) || key.Name() == PropProfile {
			return nil, fmt.Errorf("profile %s: unknown property %q", name, key.Name())
		}
		props[key.Name()] = key.String()
	}
	return props, nil
}

// profilesPath returns the profiles file to read
func profilesPath(explicit map[string]string) string {
	if path, ok := lookupProp(PropProfiles, explicit); ok && path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultProfilesFile
	}
	return filepath.Join(home, DefaultProfilesFile)
}
