// hot-reload.go: dynamic reclaimer tuning with Argus integration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gossamer

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
)

// HotConfig provides dynamic reclaimer tuning reload using Argus. It watches
// a configuration file and updates batch-sizing knobs when changes are
// detected, without requiring the Reclaimer itself to be rebuilt.
type HotConfig struct {
	r       *Reclaimer
	watcher *argus.Watcher
	mu      sync.RWMutex
	config  Config

	// OnReload is called after configuration is successfully reloaded.
	// This callback is optional and must be fast and non-blocking.
	OnReload func(oldConfig, newConfig Config)
}

// HotConfigOptions configures hot reload behavior.
type HotConfigOptions struct {
	// ConfigPath is the path to the configuration file to watch. Supports
	// JSON, YAML, TOML, HCL, INI, Properties formats.
	ConfigPath string

	// PollInterval is how often to check for configuration changes.
	// Default: 1 second. Minimum: 100ms.
	PollInterval time.Duration

	// OnReload is called after configuration is successfully reloaded.
	OnReload func(oldConfig, newConfig Config)

	// Logger is accepted for hot reload operations (if nil, the
	// reclaimer's logger is substituted) but HotConfig does not write to
	// it; reloads are reported only through OnReload.
	Logger Logger
}

// NewHotConfig creates a new hot-reloadable tuning watcher for r. It starts
// watching the configuration file immediately.
//
// Example configuration file (YAML):
//
//	reclaimer:
//	  batch_capacity_base: 128
//	  slot_capacity_factor: 4
//
// Supported configuration keys:
//   - reclaimer.batch_capacity_base (int): minimum retirements per batch
//   - reclaimer.slot_capacity_factor (int): per-slot batch capacity scaling
//
// Only batching knobs are hot-reloadable; a Reclaimer's identity and slot
// table are fixed for its lifetime.
func NewHotConfig(r *Reclaimer, opts HotConfigOptions) (*HotConfig, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config_path is required")
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = 1 * time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}

	if opts.Logger == nil {
		opts.Logger = r.cfg.Logger
	}

	hc := &HotConfig{
		r:        r,
		OnReload: opts.OnReload,
		config:   r.cfg,
	}

	argusConfig := argus.Config{
		PollInterval: opts.PollInterval,
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hc.handleConfigChange, argusConfig)
	if err != nil {
		return nil, err
	}
	hc.watcher = watcher

	return hc, nil
}

// Start begins watching the configuration file for changes.
func (hc *HotConfig) Start() error {
	if hc.watcher.IsRunning() {
		return nil
	}
	return hc.watcher.Start()
}

// Stop stops watching the configuration file.
func (hc *HotConfig) Stop() error {
	return hc.watcher.Stop()
}

// GetConfig returns the last-applied configuration (thread-safe).
func (hc *HotConfig) GetConfig() Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.config
}

// handleConfigChange is called by Argus when the configuration file changes.
func (hc *HotConfig) handleConfigChange(configData map[string]interface{}) {
	hc.mu.Lock()
	oldConfig := hc.config
	newConfig := hc.parseConfig(configData)
	hc.config = newConfig
	hc.mu.Unlock()

	hc.applyChanges(oldConfig, newConfig)

	if hc.OnReload != nil {
		hc.OnReload(oldConfig, newConfig)
	}
}

// parsePositiveInt extracts a positive integer from interface{} value.
// Supports both int and float64 types (YAML/JSON may vary).
func parsePositiveInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int(v), true
		}
	}
	return 0, false
}

// parseConfig extracts reclaimer tuning from Argus config data.
func (hc *HotConfig) parseConfig(data map[string]interface{}) Config {
	config := hc.config

	section, ok := data["reclaimer"].(map[string]interface{})
	if !ok {
		if _, hasBase := data["batch_capacity_base"]; hasBase {
			section = data
		} else {
			return config
		}
	}

	if base, ok := parsePositiveInt(section["batch_capacity_base"]); ok {
		config.BatchCapacityBase = base
	}

	if factor, ok := parsePositiveInt(section["slot_capacity_factor"]); ok {
		config.SlotCapacityFactor = factor
	}

	return config
}

// applyChanges applies a reloaded configuration to the running reclaimer.
// Only the batching knobs are live-swappable; Logger, TimeProvider, and
// MetricsCollector are fixed at construction time.
func (hc *HotConfig) applyChanges(old, new Config) {
	if new.BatchCapacityBase == old.BatchCapacityBase && new.SlotCapacityFactor == old.SlotCapacityFactor {
		return
	}
	hc.r.cfg.BatchCapacityBase = new.BatchCapacityBase
	hc.r.cfg.SlotCapacityFactor = new.SlotCapacityFactor
}
