package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/samrose/conductor/core/types"
)

// BootstrapPeer names an agent and the multiaddr it listens on.
type BootstrapPeer struct {
	AgentID types.Address `json:"agent_id"`
	Addr    string        `json:"addr"`
}

// NodeConfig is the node's JSON configuration file.
type NodeConfig struct {
	IdentityFile    string          `json:"identity_file"`
	DNAFile         string          `json:"dna_file"`
	ListenAddrs     []string        `json:"listen_addrs"`
	BootstrapPeers  []BootstrapPeer `json:"bootstrap_peers,omitempty"`
	NetTimeoutSecs  int             `json:"net_timeout_secs,omitempty"`
	ShutdownTimeout int             `json:"shutdown_timeout_secs,omitempty"`
	LogLevel        string          `json:"log_level,omitempty"`
}

// DefaultConfig returns the configuration a bare node starts with.
func DefaultConfig() NodeConfig {
	return NodeConfig{
		IdentityFile:    "conductor_identity.json",
		DNAFile:         "dna.json",
		ListenAddrs:     []string{"/ip4/0.0.0.0/tcp/0"},
		NetTimeoutSecs:  10,
		ShutdownTimeout: 15,
		LogLevel:        "info",
	}
}

// LoadConfig reads a config file over the defaults.
func LoadConfig(path string) (NodeConfig, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return config, types.WrapError(types.ErrCodeSerialization, "parsing node config", err)
	}
	return config, nil
}

// NetTimeout returns the configured request timeout.
func (c NodeConfig) NetTimeout() time.Duration {
	return time.Duration(c.NetTimeoutSecs) * time.Second
}
