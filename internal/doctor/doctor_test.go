package doctor

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/earshot/earshot/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.TrimSpace(v) != "" },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckOutputDirCreatesAndWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")

	check := checkOutputDir(dir)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, dir)
}

func TestCheckOutputDirEmpty(t *testing.T) {
	check := checkOutputDir("  ")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "output directory is empty")
}

func TestCheckOutputDirUnwritable(t *testing.T) {
	check := checkOutputDir("/proc/earshot-doctor-cannot-exist")
	require.False(t, check.Pass)
}

func TestCheckPulseFailureWithInvalidServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	checks := checkPulse()
	require.Len(t, checks, 1)
	require.Equal(t, "pulse.server", checks[0].Name)
	require.False(t, checks[0].Pass)
}

func TestRunReportsConfigAndRuntimeDir(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := config.Default()
	cfg.Capture.OutputDir = filepath.Join(t.TempDir(), "recordings")

	report := Run(config.Loaded{Path: "/tmp/config.conf", Config: cfg})
	require.NotEmpty(t, report.Checks)

	var sawConfig, sawRuntime, sawOutput bool
	for _, check := range report.Checks {
		switch check.Name {
		case "config":
			sawConfig = true
			require.True(t, check.Pass)
		case "XDG_RUNTIME_DIR":
			sawRuntime = true
			require.True(t, check.Pass)
		case "output_dir":
			sawOutput = true
			require.True(t, check.Pass)
		}
	}
	require.True(t, sawConfig)
	require.True(t, sawRuntime)
	require.True(t, sawOutput)
}
