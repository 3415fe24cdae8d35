package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration marks a setting that was out of range or malformed
// and has been replaced by its documented fallback.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Region is the capture rectangle in screen coordinates. A zero value means
// the whole monitor.
type Region struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Empty reports whether the region selects nothing (whole monitor).
func (r Region) Empty() bool { return r.W <= 0 || r.H <= 0 }

// PlayerConfig assigns a cue color and a device index to one participant.
type PlayerConfig struct {
	ID     string `json:"id" yaml:"id"`
	Color  string `json:"color" yaml:"color"`
	Device int    `json:"device" yaml:"device"`
}

// MQTTConfig enables publishing of round events when Broker is set.
type MQTTConfig struct {
	Broker   string `json:"broker" yaml:"broker"`
	Topic    string `json:"topic" yaml:"topic"`
	ClientID string `json:"client_id" yaml:"client_id"`
}

// Config holds runtime configuration for detection, arbitration, vibration
// scheduling and the collaborators around them.
type Config struct {
	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Vibration shaping
	IntensityMultiplier   float64 `json:"intensity_multiplier" yaml:"intensity_multiplier"`
	VibrationFrequencyHz  float64 `json:"vibration_frequency_hz" yaml:"vibration_frequency_hz"`
	VibrationUpdateRateHz float64 `json:"vibration_update_rate_hz" yaml:"vibration_update_rate_hz"`
	DurationCurveExponent float64 `json:"duration_curve_exponent" yaml:"duration_curve_exponent"`
	MinDurationSeconds    float64 `json:"min_duration_seconds" yaml:"min_duration_seconds"`
	MaxDurationSeconds    float64 `json:"max_duration_seconds" yaml:"max_duration_seconds"`

	// Round arbitration
	CooldownSeconds     float64 `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	PollIntervalSeconds float64 `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	WinDelta            float64 `json:"win_delta" yaml:"win_delta"`
	LoseDelta           float64 `json:"lose_delta" yaml:"lose_delta"`

	// Detection parameters
	DetectionThreshold    float64 `json:"detection_threshold" yaml:"detection_threshold"`
	IntermissionThreshold float64 `json:"intermission_threshold" yaml:"intermission_threshold"`
	MinColorAreaFraction  float64 `json:"min_color_area_fraction" yaml:"min_color_area_fraction"`
	Stride                int     `json:"stride" yaml:"stride"`
	Refine                bool    `json:"refine" yaml:"refine"`

	TemplatePath             string `json:"template_path" yaml:"template_path"`
	IntermissionTemplatePath string `json:"intermission_template_path" yaml:"intermission_template_path"`

	// Capture
	Monitor int    `json:"monitor" yaml:"monitor"`
	Region  Region `json:"region" yaml:"region"`

	// Device server (Intiface Central)
	ServerURL             string  `json:"server_url" yaml:"server_url"`
	ScanSeconds           float64 `json:"scan_seconds" yaml:"scan_seconds"`
	RequestTimeoutSeconds float64 `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`

	Players []PlayerConfig `json:"players" yaml:"players"`

	// Telemetry
	MetricsAddr string     `json:"metrics_addr" yaml:"metrics_addr"`
	MQTT        MQTTConfig `json:"mqtt" yaml:"mqtt"`
	TraceDir    string     `json:"trace_dir" yaml:"trace_dir"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                    false,
		LogLevel:                 "info",
		IntensityMultiplier:      1.0,
		VibrationFrequencyHz:     2.0,
		VibrationUpdateRateHz:    40,
		DurationCurveExponent:    0.7,
		MinDurationSeconds:       10,
		MaxDurationSeconds:       20,
		CooldownSeconds:          3,
		PollIntervalSeconds:      0.5,
		WinDelta:                 -0.2,
		LoseDelta:                0.1,
		DetectionThreshold:       0.75,
		IntermissionThreshold:    0.8,
		MinColorAreaFraction:     0.05,
		Stride:                   4,
		Refine:                   true,
		TemplatePath:             "template.png",
		IntermissionTemplatePath: "intermission.png",
		Monitor:                  0,
		ServerURL:                "ws://127.0.0.1:12345",
		ScanSeconds:              2,
		RequestTimeoutSeconds:    2,
		Players:                  []PlayerConfig{{ID: "P1", Color: Palette[0].Name, Device: 0}},
		MQTT:                     MQTTConfig{Topic: "duckhaptics/rounds", ClientID: "duck-haptics"},
	}
}

// Validate clamps/normalizes values to safe ranges. Every replaced value is
// reported as an ErrInvalidConfiguration in the joined result; the config is
// usable either way.
func (c *Config) Validate() error {
	def := DefaultConfig()
	var errs []error
	invalid := func(field string, got any, fallback any) {
		errs = append(errs, fmt.Errorf("%w: %s=%v, using %v", ErrInvalidConfiguration, field, got, fallback))
	}

	if c.IntensityMultiplier < 0 || c.IntensityMultiplier > 1 {
		invalid("intensity_multiplier", c.IntensityMultiplier, 1.0)
		c.IntensityMultiplier = 1.0
	}
	if c.VibrationFrequencyHz <= 0 {
		invalid("vibration_frequency_hz", c.VibrationFrequencyHz, def.VibrationFrequencyHz)
		c.VibrationFrequencyHz = def.VibrationFrequencyHz
	}
	if c.VibrationUpdateRateHz <= 0 {
		invalid("vibration_update_rate_hz", c.VibrationUpdateRateHz, def.VibrationUpdateRateHz)
		c.VibrationUpdateRateHz = def.VibrationUpdateRateHz
	}
	if c.DurationCurveExponent <= 0 {
		invalid("duration_curve_exponent", c.DurationCurveExponent, def.DurationCurveExponent)
		c.DurationCurveExponent = def.DurationCurveExponent
	}
	if c.MinDurationSeconds <= 0 || c.MaxDurationSeconds < c.MinDurationSeconds {
		invalid("min/max_duration_seconds", fmt.Sprintf("%v/%v", c.MinDurationSeconds, c.MaxDurationSeconds), fmt.Sprintf("%v/%v", def.MinDurationSeconds, def.MaxDurationSeconds))
		c.MinDurationSeconds, c.MaxDurationSeconds = def.MinDurationSeconds, def.MaxDurationSeconds
	}
	if c.CooldownSeconds <= 0 {
		invalid("cooldown_seconds", c.CooldownSeconds, def.CooldownSeconds)
		c.CooldownSeconds = def.CooldownSeconds
	}
	if c.PollIntervalSeconds <= 0 {
		invalid("poll_interval_seconds", c.PollIntervalSeconds, def.PollIntervalSeconds)
		c.PollIntervalSeconds = def.PollIntervalSeconds
	}
	if c.WinDelta > 0 || c.WinDelta < -1 {
		invalid("win_delta", c.WinDelta, def.WinDelta)
		c.WinDelta = def.WinDelta
	}
	if c.LoseDelta < 0 || c.LoseDelta > 1 {
		invalid("lose_delta", c.LoseDelta, def.LoseDelta)
		c.LoseDelta = def.LoseDelta
	}
	if c.DetectionThreshold <= 0 || c.DetectionThreshold > 1 {
		invalid("detection_threshold", c.DetectionThreshold, def.DetectionThreshold)
		c.DetectionThreshold = def.DetectionThreshold
	}
	if c.IntermissionThreshold <= 0 || c.IntermissionThreshold > 1 {
		invalid("intermission_threshold", c.IntermissionThreshold, def.IntermissionThreshold)
		c.IntermissionThreshold = def.IntermissionThreshold
	}
	if c.MinColorAreaFraction < 0 || c.MinColorAreaFraction > 1 {
		invalid("min_color_area_fraction", c.MinColorAreaFraction, def.MinColorAreaFraction)
		c.MinColorAreaFraction = def.MinColorAreaFraction
	}
	if c.Stride <= 0 {
		c.Stride = 1
	}
	if c.Monitor != 0 {
		// The capture backend only exposes the main monitor.
		invalid("monitor", c.Monitor, 0)
		c.Monitor = 0
	}
	if c.Region.X < 0 || c.Region.Y < 0 || c.Region.W < 0 || c.Region.H < 0 {
		invalid("region", c.Region, Region{})
		c.Region = Region{}
	}
	if c.ScanSeconds <= 0 {
		c.ScanSeconds = def.ScanSeconds
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = def.RequestTimeoutSeconds
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = def.LogLevel
	}

	if len(c.Players) == 0 {
		invalid("players", "[]", def.Players)
		c.Players = def.Players
	}
	seen := make(map[string]bool, len(c.Players))
	for i := range c.Players {
		p := &c.Players[i]
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" || seen[p.ID] {
			id := fmt.Sprintf("P%d", i+1)
			invalid(fmt.Sprintf("players[%d].id", i), p.ID, id)
			p.ID = id
		}
		seen[p.ID] = true
		if _, ok := LookupColor(p.Color); !ok {
			invalid(fmt.Sprintf("players[%d].color", i), p.Color, Palette[0].Name)
			p.Color = Palette[0].Name
		} else {
			p.Color = strings.ToLower(strings.TrimSpace(p.Color))
		}
		if p.Device < 0 {
			invalid(fmt.Sprintf("players[%d].device", i), p.Device, 0)
			p.Device = 0
		}
	}
	return errors.Join(errs...)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load attempts to read configuration from the given JSON or YAML file path
// (chosen by extension). If the file does not exist it returns
// DefaultConfig(). On decode error it returns defaults with the error.
// Validation fallbacks are not returned here; call Validate to inspect them.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	if isYAML(path) {
		err = yaml.NewDecoder(f).Decode(cfg)
	} else {
		err = json.NewDecoder(f).Decode(cfg)
	}
	if err != nil {
		return DefaultConfig(), fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to the given path, YAML or JSON by extension.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
