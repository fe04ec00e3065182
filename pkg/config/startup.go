package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// StartupConfig is the minimal bootstrap configuration the agent needs
// to open the coordination store, read from an ini file (spec §6.7).
// Everything else lives in the store-backed Configuration record and
// is re-read every tick.
type StartupConfig struct {
	// StoreDataDir is where the embedded coordination store keeps its
	// data file.
	StoreDataDir string
	// NodeName is this host's own node identity in the coordination
	// store; defaults to the local hostname when empty.
	NodeName string
}

// LoadStartupConfig reads StartupConfig from an ini file. A missing
// required key is a configuration error per spec §7: fatal, the
// caller should exit the process.
func LoadStartupConfig(path string) (*StartupConfig, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load startup config %s: %w", path, err)
	}

	section := f.Section("store")
	dataDir := section.Key("data_dir").String()
	if dataDir == "" {
		return nil, fmt.Errorf("startup config %s: [store] data_dir is required", path)
	}

	nodeName := f.Section("agent").Key("node_name").String()
	if nodeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("startup config %s: [agent] node_name is empty and the hostname is unavailable: %w", path, err)
		}
		nodeName = hostname
	}

	return &StartupConfig{
		StoreDataDir: dataDir,
		NodeName:     nodeName,
	}, nil
}
