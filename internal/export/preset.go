package export

import "fmt"

// CRF bounds for user overrides, and the lossless sentinel.
const (
	MinCRF      = 18
	MaxCRF      = 40
	LosslessCRF = 0
)

// Preset is one row of the quality table.
type Preset struct {
	Name string `json:"name" toml:"name"`

	// CRF is the constant-rate-factor quality. LosslessCRF pins lossless
	// output and disables the override.
	CRF int `json:"crf" toml:"crf"`

	// Effort is the encoder speed/quality tradeoff.
	Effort string `json:"effort" toml:"effort"`

	// AudioBitrate is the audio encode bitrate in bits/s.
	AudioBitrate int `json:"audio_bitrate" toml:"audio_bitrate"`

	// RecordBitrate is the suggested live-recording bitrate in bits/s for
	// sessions intended to be exported at this preset.
	RecordBitrate int `json:"record_bitrate" toml:"record_bitrate"`
}

// Lossless reports whether the preset pins lossless output.
func (p Preset) Lossless() bool { return p.CRF == LosslessCRF }

// defaultPresets is the built-in quality table.
var defaultPresets = []Preset{
	{Name: "low", CRF: 32, Effort: "veryfast", AudioBitrate: 96_000, RecordBitrate: 2_500_000},
	{Name: "medium", CRF: 28, Effort: "fast", AudioBitrate: 128_000, RecordBitrate: 5_000_000},
	{Name: "high", CRF: 22, Effort: "medium", AudioBitrate: 192_000, RecordBitrate: 8_000_000},
	{Name: "lossless", CRF: LosslessCRF, Effort: "fast", AudioBitrate: 256_000, RecordBitrate: 12_000_000},
}

// Presets holds the active quality table.
type Presets struct {
	table []Preset
}

// DefaultPresets returns the built-in table.
func DefaultPresets() *Presets {
	return &Presets{table: defaultPresets}
}

// NewPresets builds a table from configuration rows; empty input falls back
// to the defaults.
func NewPresets(rows []Preset) *Presets {
	if len(rows) == 0 {
		return DefaultPresets()
	}
	return &Presets{table: rows}
}

// Lookup resolves a preset by name.
func (p *Presets) Lookup(name string) (Preset, error) {
	for _, preset := range p.table {
		if preset.Name == name {
			return preset, nil
		}
	}
	return Preset{}, NewError(ErrCodeBadSettings, fmt.Sprintf("unknown preset %q", name), nil)
}

// All returns a copy of the table.
func (p *Presets) All() []Preset {
	out := make([]Preset, len(p.table))
	copy(out, p.table)
	return out
}

// effectiveCRF applies the user override to a preset. Lossless presets
// ignore the override; other values clamp into [MinCRF, MaxCRF].
func effectiveCRF(preset Preset, override *int) int {
	if preset.Lossless() || override == nil {
		return preset.CRF
	}
	crf := *override
	if crf < MinCRF {
		crf = MinCRF
	}
	if crf > MaxCRF {
		crf = MaxCRF
	}
	return crf
}
