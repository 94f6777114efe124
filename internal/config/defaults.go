package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Monitor: MonitorConfig{
			PollIntervalMS: 2000,
			DebounceMS:     200,
		},
		Detect: DetectConfig{
			ConfirmDelayMS: 1000,
			CooldownS:      120,
			SettleDelayMS:  3000,
		},
		Capture: CaptureConfig{
			OutputDir:      "",
			SystemRate:     48000,
			SystemChannels: 2,
			MicRate:        44100,
		},
		Notify: NotifyConfig{
			Enable:  true,
			AppName: "earshot",
		},
	}
}
