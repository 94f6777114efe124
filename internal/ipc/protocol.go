package ipc

// Request is one CLI command forwarded to the running daemon.
type Request struct {
	Command    string `json:"command"`
	SystemPath string `json:"system_path,omitempty"`
	MicPath    string `json:"mic_path,omitempty"`
	Granted    *bool  `json:"granted,omitempty"`
}

// Signals is the daemon's observable state snapshot returned with status.
type Signals struct {
	MicActive         bool   `json:"mic_active"`
	SystemAudioActive bool   `json:"system_audio_active"`
	CallActive        bool   `json:"call_active"`
	PromptPending     bool   `json:"prompt_pending"`
	Recording         bool   `json:"recording"`
	ActiveProcess     string `json:"active_process,omitempty"`
	SystemAudioPath   string `json:"system_audio_path,omitempty"`
	MicrophonePath    string `json:"microphone_path,omitempty"`
	StreamError       string `json:"stream_error,omitempty"`
}

// Source is one audio-producing process, as listed by the sources command.
type Source struct {
	ID     uint32 `json:"id"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Response is the daemon's reply to one Request.
type Response struct {
	OK      bool     `json:"ok"`
	State   string   `json:"state,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Signals *Signals `json:"signals,omitempty"`
	Sources []Source `json:"sources,omitempty"`
}
