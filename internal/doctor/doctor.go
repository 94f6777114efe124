// Package doctor runs runtime readiness diagnostics for config, audio, and paths.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/earshot/earshot/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available for the daemon socket", "XDG_RUNTIME_DIR is empty"))

	checks = append(checks, checkOutputDir(cfg.Config.Capture.OutputDir))
	checks = append(checks, checkPulse()...)

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkOutputDir validates that the recording directory can be created and
// written.
func checkOutputDir(dir string) Check {
	if strings.TrimSpace(dir) == "" {
		return Check{Name: "output_dir", Pass: false, Message: "output directory is empty"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: "output_dir", Pass: false, Message: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}
	probe := filepath.Join(dir, ".earshot-doctor")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return Check{Name: "output_dir", Pass: false, Message: fmt.Sprintf("cannot write to %s: %v", dir, err)}
	}
	_ = os.Remove(probe)
	return Check{Name: "output_dir", Pass: true, Message: fmt.Sprintf("writable at %s", dir)}
}

// checkPulse probes the sound server: reachability, a usable default source,
// and a monitor source on the default sink for the system tap.
func checkPulse() []Check {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("earshot"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return []Check{{Name: "pulse.server", Pass: false, Message: fmt.Sprintf("connect failed: %v", err)}}
	}
	defer client.Close()

	checks := []Check{{Name: "pulse.server", Pass: true, Message: "sound server reachable"}}

	source, err := client.DefaultSource()
	if err != nil {
		checks = append(checks, Check{Name: "pulse.default_source", Pass: false, Message: err.Error()})
	} else {
		checks = append(checks, Check{Name: "pulse.default_source", Pass: true, Message: fmt.Sprintf("microphone %q", source.ID())})
	}

	checks = append(checks, checkDefaultMonitor(client))
	return checks
}

func checkDefaultMonitor(client *pulse.Client) Check {
	var server pulseproto.GetServerInfoReply
	if err := client.RawRequest(&pulseproto.GetServerInfo{}, &server); err != nil {
		return Check{Name: "pulse.monitor", Pass: false, Message: fmt.Sprintf("read server info: %v", err)}
	}

	var sinks pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinks); err != nil {
		return Check{Name: "pulse.monitor", Pass: false, Message: fmt.Sprintf("list sinks: %v", err)}
	}

	for _, info := range sinks {
		if info == nil || info.SinkName != server.DefaultSinkName {
			continue
		}
		if info.MonitorSourceName == "" {
			return Check{Name: "pulse.monitor", Pass: false, Message: fmt.Sprintf("default sink %q has no monitor source", info.SinkName)}
		}
		return Check{Name: "pulse.monitor", Pass: true, Message: fmt.Sprintf("system tap via %q", info.MonitorSourceName)}
	}
	return Check{Name: "pulse.monitor", Pass: false, Message: fmt.Sprintf("default sink %q not found", server.DefaultSinkName)}
}
