package config

import "fmt"

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Monitor.PollIntervalMS <= 0 {
		return nil, fmt.Errorf("monitor.poll_interval_ms must be > 0")
	}
	if cfg.Monitor.DebounceMS < 0 {
		return nil, fmt.Errorf("monitor.debounce_ms must be >= 0")
	}
	if cfg.Monitor.DebounceMS >= cfg.Monitor.PollIntervalMS {
		warnings = append(warnings, Warning{
			Message: "monitor.debounce_ms >= monitor.poll_interval_ms; timer refreshes will coalesce to the debounce window",
		})
	}

	if cfg.Detect.ConfirmDelayMS <= 0 {
		return nil, fmt.Errorf("detect.confirm_delay_ms must be > 0")
	}
	if cfg.Detect.CooldownS < 0 {
		return nil, fmt.Errorf("detect.cooldown_s must be >= 0")
	}
	if cfg.Detect.SettleDelayMS < 0 {
		return nil, fmt.Errorf("detect.settle_delay_ms must be >= 0")
	}

	if cfg.Capture.SystemRate <= 0 {
		return nil, fmt.Errorf("capture.system_rate must be > 0")
	}
	if cfg.Capture.SystemChannels != 1 && cfg.Capture.SystemChannels != 2 {
		return nil, fmt.Errorf("capture.system_channels must be 1 or 2")
	}
	if cfg.Capture.MicRate <= 0 {
		return nil, fmt.Errorf("capture.mic_rate must be > 0")
	}

	if cfg.Notify.Enable && cfg.Notify.AppName == "" {
		return nil, fmt.Errorf("notify.app_name must not be empty when notify.enable=true")
	}

	return warnings, nil
}
