package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/recnode/recnode/internal/editor"
	"github.com/recnode/recnode/internal/export"
)

// editFile is the TOML shape of the live-reloadable editing section.
type editFile struct {
	Editor editor.Policy `toml:"editor"`
	Export struct {
		Presets []export.Preset `toml:"presets"`
	} `toml:"export"`
}

// EditConfig is the live-reloadable part of the configuration: segment edit
// thresholds and the export quality table.
type EditConfig struct {
	Policy  editor.Policy
	Presets []export.Preset
}

// LoadEditConfig reads the editor policy and export presets from a TOML
// file. A missing file yields defaults; missing values fall back to
// defaults field by field.
func LoadEditConfig(path string) (EditConfig, error) {
	cfg := EditConfig{Policy: editor.DefaultPolicy()}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	var file editFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Policy = mergePolicy(file.Editor)
	cfg.Presets = file.Export.Presets
	return cfg, nil
}

// mergePolicy overlays configured values onto the defaults, keeping any
// field the file left unset.
func mergePolicy(p editor.Policy) editor.Policy {
	def := editor.DefaultPolicy()
	if p.MinGap <= 0 {
		p.MinGap = def.MinGap
	}
	if p.MinKeep <= 0 {
		p.MinKeep = def.MinKeep
	}
	if p.MergeEpsilon <= 0 {
		p.MergeEpsilon = def.MergeEpsilon
	}
	if p.HistoryDepth <= 0 {
		p.HistoryDepth = def.HistoryDepth
	}
	return p
}
