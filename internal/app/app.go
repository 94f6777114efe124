// Package app dispatches CLI commands to the daemon or runs the daemon itself.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/earshot/earshot/internal/capture"
	"github.com/earshot/earshot/internal/cli"
	"github.com/earshot/earshot/internal/config"
	"github.com/earshot/earshot/internal/detect"
	"github.com/earshot/earshot/internal/device"
	"github.com/earshot/earshot/internal/doctor"
	"github.com/earshot/earshot/internal/engine"
	"github.com/earshot/earshot/internal/ipc"
	"github.com/earshot/earshot/internal/logging"
	"github.com/earshot/earshot/internal/notify"
	"github.com/earshot/earshot/internal/procaudio"
	"github.com/earshot/earshot/internal/pulsemon"
	"github.com/earshot/earshot/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("earshot"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("earshot"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	outputDir, err := config.ResolveOutputDir(cfgLoaded.Config)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	cfgLoaded.Config.Capture.OutputDir = outputDir

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStart:
		return r.forwardOrFail(ctx, ipc.Request{
			Command:    "start",
			SystemPath: parsed.SystemPath,
			MicPath:    parsed.MicPath,
		})
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.Request{Command: "stop"})
	case cli.CommandPromptAck:
		return r.forwardOrFail(ctx, ipc.Request{Command: "prompt-ack"})
	case cli.CommandSources:
		return r.commandSources(ctx)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// commandRun owns the daemon lifetime: socket, Pulse connection, engine, IPC.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: earshot daemon already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	conn, err := pulsemon.Connect("earshot")
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("pulse connect failed", "error", err.Error())
		return 1
	}
	defer func() { _ = conn.Close() }()

	monitor := device.NewMonitor(logger, conn)
	registry := procaudio.NewRegistry(conn)
	selector := procaudio.NewSelector(logger, registry, cfg.Monitor.Debounce())
	detector := detect.New(logger, cfg.Detect.ConfirmDelay(), cfg.Detect.Cooldown())
	orchestrator := capture.NewOrchestrator(logger, cfg.Capture)
	notifier := notify.New(logger, cfg.Notify)

	eng := engine.New(logger, cfg, conn.Events(), monitor, selector, registry, detector, orchestrator, notifier)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, eng)
	}()

	runErr := eng.Run(ctx)
	serverCancel()
	serveErr := <-serverErrCh

	if runErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		logger.Error("engine stopped", "error", runErr.Error())
		return 1
	}
	if serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serveErr)
		return 1
	}

	logger.Info("daemon stopped")
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"}, 220*time.Millisecond)
	if !handled {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	state := resp.State
	if state == "" {
		state = "idle"
	}
	fmt.Fprintln(r.Stdout, state)
	if s := resp.Signals; s != nil {
		fmt.Fprintf(r.Stdout, "mic=%t system_audio=%t call=%t prompt=%t recording=%t\n",
			s.MicActive, s.SystemAudioActive, s.CallActive, s.PromptPending, s.Recording)
		if s.ActiveProcess != "" {
			fmt.Fprintf(r.Stdout, "active_process=%q\n", s.ActiveProcess)
		}
		if s.Recording {
			fmt.Fprintf(r.Stdout, "system_path=%s\nmic_path=%s\n", s.SystemAudioPath, s.MicrophonePath)
		}
		if s.StreamError != "" {
			fmt.Fprintf(r.Stdout, "stream_error=%q\n", s.StreamError)
		}
	}
	return 0
}

func (r Runner) commandSources(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "sources"}, time.Second)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running earshot daemon")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(resp.Sources) == 0 {
		fmt.Fprintln(r.Stdout, "no audio-producing processes")
		return 0
	}

	for _, source := range resp.Sources {
		activeMark := " "
		if source.Active {
			activeMark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s id=%d | kind=%s | name=%q\n", activeMark, source.ID, source.Kind, source.Name)
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	// start opens real capture streams before replying, so allow for it
	resp, handled, err := tryForward(ctx, socketPath, req, 3*time.Second)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running earshot daemon")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
