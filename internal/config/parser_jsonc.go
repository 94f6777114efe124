package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Monitor *jsoncMonitor `json:"monitor"`
	Detect  *jsoncDetect  `json:"detect"`
	Capture *jsoncCapture `json:"capture"`
	Notify  *jsoncNotify  `json:"notify"`
}

type jsoncMonitor struct {
	PollIntervalMS *int `json:"poll_interval_ms"`
	DebounceMS     *int `json:"debounce_ms"`
}

type jsoncDetect struct {
	ConfirmDelayMS *int `json:"confirm_delay_ms"`
	CooldownS      *int `json:"cooldown_s"`
	SettleDelayMS  *int `json:"settle_delay_ms"`
}

type jsoncCapture struct {
	OutputDir      *string `json:"output_dir"`
	SystemRate     *int    `json:"system_rate"`
	SystemChannels *int    `json:"system_channels"`
	MicRate        *int    `json:"mic_rate"`
}

type jsoncNotify struct {
	Enable  *bool   `json:"enable"`
	AppName *string `json:"app_name"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, validatedWarnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if payload.Monitor != nil {
		if payload.Monitor.PollIntervalMS != nil {
			cfg.Monitor.PollIntervalMS = *payload.Monitor.PollIntervalMS
		}
		if payload.Monitor.DebounceMS != nil {
			cfg.Monitor.DebounceMS = *payload.Monitor.DebounceMS
		}
	}

	if payload.Detect != nil {
		if payload.Detect.ConfirmDelayMS != nil {
			cfg.Detect.ConfirmDelayMS = *payload.Detect.ConfirmDelayMS
		}
		if payload.Detect.CooldownS != nil {
			cfg.Detect.CooldownS = *payload.Detect.CooldownS
		}
		if payload.Detect.SettleDelayMS != nil {
			cfg.Detect.SettleDelayMS = *payload.Detect.SettleDelayMS
		}
	}

	if payload.Capture != nil {
		if payload.Capture.OutputDir != nil {
			cfg.Capture.OutputDir = strings.TrimSpace(*payload.Capture.OutputDir)
		}
		if payload.Capture.SystemRate != nil {
			cfg.Capture.SystemRate = *payload.Capture.SystemRate
		}
		if payload.Capture.SystemChannels != nil {
			cfg.Capture.SystemChannels = *payload.Capture.SystemChannels
		}
		if payload.Capture.MicRate != nil {
			cfg.Capture.MicRate = *payload.Capture.MicRate
		}
	}

	if payload.Notify != nil {
		if payload.Notify.Enable != nil {
			cfg.Notify.Enable = *payload.Notify.Enable
		}
		if payload.Notify.AppName != nil {
			cfg.Notify.AppName = strings.TrimSpace(*payload.Notify.AppName)
		}
	}
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' || ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
