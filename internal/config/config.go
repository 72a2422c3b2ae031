package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Pipeline represents the tuning configuration for the signal pipeline.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* accessors supply defaults for everything else. The
// defaults match the reference EOG headset (250 Hz, single channel).
type Pipeline struct {
	// Acquisition params
	Channels     *int     `json:"channels,omitempty"`
	SampleRateHz *float64 `json:"sample_rate_hz,omitempty"`
	WindowLength *int     `json:"window_length,omitempty"`

	// Filter design params
	FilterOrder      *int     `json:"filter_order,omitempty"`
	BandpassLowHz    *float64 `json:"bandpass_low_hz,omitempty"`
	BandpassHighHz   *float64 `json:"bandpass_high_hz,omitempty"`
	NotchHz          *float64 `json:"notch_hz,omitempty"`
	NotchHalfWidthHz *float64 `json:"notch_half_width_hz,omitempty"`

	// Serial params
	SerialDevice *string `json:"serial_device,omitempty"`
	BaudRate     *int    `json:"baud_rate,omitempty"`
	ReadTimeout  *string `json:"read_timeout,omitempty"` // duration string like "1s"

	// Classification bands. Neutral is the resting range on filtered
	// values; the excursion bands are checked against raw values.
	NeutralMin       *float64 `json:"neutral_min,omitempty"`
	NeutralMax       *float64 `json:"neutral_max,omitempty"`
	ExcursionPosMin  *float64 `json:"excursion_pos_min,omitempty"`
	ExcursionPosMax  *float64 `json:"excursion_pos_max,omitempty"`
	ExcursionNegLow  *float64 `json:"excursion_neg_low,omitempty"`
	ExcursionNegHigh *float64 `json:"excursion_neg_high,omitempty"`

	// Timing params (duration strings)
	InitialDelay    *string `json:"initial_delay,omitempty"`
	PrintDelay      *string `json:"print_delay,omitempty"`
	EyeOpenDuration *string `json:"eye_open_duration,omitempty"`
	BlinkCooldown   *string `json:"blink_cooldown,omitempty"`

	// Output params
	EventLogDir  *string `json:"event_log_dir,omitempty"`
	DatabasePath *string `json:"database_path,omitempty"`
}

// Default values for every tunable. These mirror the reference hardware
// and must only change together with the classifier band calibration.
const (
	DefaultChannels       = 1
	DefaultSampleRateHz   = 250.0
	DefaultWindowLength   = 1250
	DefaultFilterOrder    = 5
	DefaultBandpassLowHz  = 1.0
	DefaultBandpassHighHz = 45.0
	DefaultNotchHz        = 50.0
	DefaultNotchHalfWidth = 1.5

	DefaultSerialDevice = "/dev/ttyUSB0"
	DefaultBaudRate     = 115200

	DefaultNeutralMin       = -100.0
	DefaultNeutralMax       = 100.0
	DefaultExcursionPosMin  = 120.0
	DefaultExcursionPosMax  = 275.0
	DefaultExcursionNegLow  = -220.0
	DefaultExcursionNegHigh = -120.0

	DefaultEventLogDir  = "."
	DefaultDatabasePath = "gazelink.db"
)

// Default durations, kept separate because they are time.Duration typed.
const (
	DefaultReadTimeout     = time.Second
	DefaultInitialDelay    = 5 * time.Second
	DefaultPrintDelay      = 3 * time.Second
	DefaultEyeOpenDuration = 5 * time.Second
	DefaultBlinkCooldown   = time.Second
)

// Empty returns a Pipeline with all fields unset so every accessor falls
// back to its default.
func Empty() *Pipeline {
	return &Pipeline{}
}

// Load reads a Pipeline config from a JSON file. Fields omitted from the
// file retain their defaults, so partial configs are safe.
func Load(path string) (*Pipeline, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks invariants between the set fields. Unset fields are
// valid by construction since the defaults satisfy all invariants.
func (c *Pipeline) Validate() error {
	if c.Channels != nil && *c.Channels < 1 {
		return fmt.Errorf("channels must be >= 1, got %d", *c.Channels)
	}
	if c.SampleRateHz != nil && *c.SampleRateHz <= 0 {
		return fmt.Errorf("sample_rate_hz must be positive, got %g", *c.SampleRateHz)
	}
	if c.WindowLength != nil && *c.WindowLength < 1 {
		return fmt.Errorf("window_length must be >= 1, got %d", *c.WindowLength)
	}
	if c.FilterOrder != nil && *c.FilterOrder < 1 {
		return fmt.Errorf("filter_order must be >= 1, got %d", *c.FilterOrder)
	}

	low, high := c.GetBandpassLowHz(), c.GetBandpassHighHz()
	if low <= 0 || high <= low {
		return fmt.Errorf("bandpass cutoffs must satisfy 0 < low < high, got [%g, %g]", low, high)
	}
	if nyquist := c.GetSampleRateHz() / 2; high >= nyquist {
		return fmt.Errorf("bandpass high cutoff %g Hz must be below nyquist %g Hz", high, nyquist)
	}
	if c.NotchHalfWidthHz != nil && *c.NotchHalfWidthHz <= 0 {
		return fmt.Errorf("notch_half_width_hz must be positive, got %g", *c.NotchHalfWidthHz)
	}

	if c.GetNeutralMin() >= c.GetNeutralMax() {
		return fmt.Errorf("neutral band empty: [%g, %g]", c.GetNeutralMin(), c.GetNeutralMax())
	}
	if c.GetExcursionPosMin() >= c.GetExcursionPosMax() {
		return fmt.Errorf("positive excursion band empty: [%g, %g]", c.GetExcursionPosMin(), c.GetExcursionPosMax())
	}
	if c.GetExcursionNegLow() >= c.GetExcursionNegHigh() {
		return fmt.Errorf("negative excursion band empty: [%g, %g]", c.GetExcursionNegLow(), c.GetExcursionNegHigh())
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	for name, field := range map[string]*string{
		"read_timeout":      c.ReadTimeout,
		"initial_delay":     c.InitialDelay,
		"print_delay":       c.PrintDelay,
		"eye_open_duration": c.EyeOpenDuration,
		"blink_cooldown":    c.BlinkCooldown,
	} {
		if field == nil {
			continue
		}
		d, err := time.ParseDuration(*field)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, *field, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}

	return nil
}

func (c *Pipeline) GetChannels() int {
	if c.Channels != nil {
		return *c.Channels
	}
	return DefaultChannels
}

func (c *Pipeline) GetSampleRateHz() float64 {
	if c.SampleRateHz != nil {
		return *c.SampleRateHz
	}
	return DefaultSampleRateHz
}

func (c *Pipeline) GetWindowLength() int {
	if c.WindowLength != nil {
		return *c.WindowLength
	}
	return DefaultWindowLength
}

func (c *Pipeline) GetFilterOrder() int {
	if c.FilterOrder != nil {
		return *c.FilterOrder
	}
	return DefaultFilterOrder
}

func (c *Pipeline) GetBandpassLowHz() float64 {
	if c.BandpassLowHz != nil {
		return *c.BandpassLowHz
	}
	return DefaultBandpassLowHz
}

func (c *Pipeline) GetBandpassHighHz() float64 {
	if c.BandpassHighHz != nil {
		return *c.BandpassHighHz
	}
	return DefaultBandpassHighHz
}

func (c *Pipeline) GetNotchHz() float64 {
	if c.NotchHz != nil {
		return *c.NotchHz
	}
	return DefaultNotchHz
}

func (c *Pipeline) GetNotchHalfWidthHz() float64 {
	if c.NotchHalfWidthHz != nil {
		return *c.NotchHalfWidthHz
	}
	return DefaultNotchHalfWidth
}

func (c *Pipeline) GetSerialDevice() string {
	if c.SerialDevice != nil {
		return *c.SerialDevice
	}
	return DefaultSerialDevice
}

func (c *Pipeline) GetBaudRate() int {
	if c.BaudRate != nil {
		return *c.BaudRate
	}
	return DefaultBaudRate
}

func (c *Pipeline) GetNeutralMin() float64 {
	if c.NeutralMin != nil {
		return *c.NeutralMin
	}
	return DefaultNeutralMin
}

func (c *Pipeline) GetNeutralMax() float64 {
	if c.NeutralMax != nil {
		return *c.NeutralMax
	}
	return DefaultNeutralMax
}

func (c *Pipeline) GetExcursionPosMin() float64 {
	if c.ExcursionPosMin != nil {
		return *c.ExcursionPosMin
	}
	return DefaultExcursionPosMin
}

func (c *Pipeline) GetExcursionPosMax() float64 {
	if c.ExcursionPosMax != nil {
		return *c.ExcursionPosMax
	}
	return DefaultExcursionPosMax
}

func (c *Pipeline) GetExcursionNegLow() float64 {
	if c.ExcursionNegLow != nil {
		return *c.ExcursionNegLow
	}
	return DefaultExcursionNegLow
}

func (c *Pipeline) GetExcursionNegHigh() float64 {
	if c.ExcursionNegHigh != nil {
		return *c.ExcursionNegHigh
	}
	return DefaultExcursionNegHigh
}

func (c *Pipeline) GetEventLogDir() string {
	if c.EventLogDir != nil {
		return *c.EventLogDir
	}
	return DefaultEventLogDir
}

func (c *Pipeline) GetDatabasePath() string {
	if c.DatabasePath != nil {
		return *c.DatabasePath
	}
	return DefaultDatabasePath
}

func (c *Pipeline) GetReadTimeout() time.Duration {
	return c.duration(c.ReadTimeout, DefaultReadTimeout)
}

func (c *Pipeline) GetInitialDelay() time.Duration {
	return c.duration(c.InitialDelay, DefaultInitialDelay)
}

func (c *Pipeline) GetPrintDelay() time.Duration {
	return c.duration(c.PrintDelay, DefaultPrintDelay)
}

func (c *Pipeline) GetEyeOpenDuration() time.Duration {
	return c.duration(c.EyeOpenDuration, DefaultEyeOpenDuration)
}

func (c *Pipeline) GetBlinkCooldown() time.Duration {
	return c.duration(c.BlinkCooldown, DefaultBlinkCooldown)
}

// duration parses a duration string field, returning the fallback when the
// field is unset or unparseable. Validate reports parse failures; accessors
// stay total so callers never branch on config errors mid-pipeline.
func (c *Pipeline) duration(field *string, fallback time.Duration) time.Duration {
	if field == nil {
		return fallback
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return fallback
	}
	return d
}
