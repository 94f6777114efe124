// Package config resolves, parses, validates, and defaults earshot configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by earshot.
type Config struct {
	Monitor MonitorConfig
	Detect  DetectConfig
	Capture CaptureConfig
	Notify  NotifyConfig
}

// MonitorConfig controls process-audio refresh cadence.
type MonitorConfig struct {
	PollIntervalMS int
	DebounceMS     int
}

// PollInterval returns the selector refresh period.
func (m MonitorConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalMS) * time.Millisecond
}

// Debounce returns the refresh coalescing window.
func (m MonitorConfig) Debounce() time.Duration {
	return time.Duration(m.DebounceMS) * time.Millisecond
}

// DetectConfig controls call-detection timing.
type DetectConfig struct {
	ConfirmDelayMS int
	CooldownS      int
	SettleDelayMS  int
}

// ConfirmDelay returns the prompt confirmation delay.
func (d DetectConfig) ConfirmDelay() time.Duration {
	return time.Duration(d.ConfirmDelayMS) * time.Millisecond
}

// Cooldown returns the minimum spacing between delivered prompts.
func (d DetectConfig) Cooldown() time.Duration {
	return time.Duration(d.CooldownS) * time.Second
}

// SettleDelay returns the monitoring resume delay after a recording stops.
func (d DetectConfig) SettleDelay() time.Duration {
	return time.Duration(d.SettleDelayMS) * time.Millisecond
}

// CaptureConfig controls recording formats and output placement.
type CaptureConfig struct {
	OutputDir      string
	SystemRate     int
	SystemChannels int
	MicRate        int
}

// NotifyConfig controls the desktop notification raised with a record prompt.
type NotifyConfig struct {
	Enable  bool
	AppName string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
