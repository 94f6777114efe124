package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun       Command = "run"
	CommandStart     Command = "start"
	CommandStop      Command = "stop"
	CommandStatus    Command = "status"
	CommandPromptAck Command = "prompt-ack"
	CommandSources   Command = "sources"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:       {},
	CommandStart:     {},
	CommandStop:      {},
	CommandStatus:    {},
	CommandPromptAck: {},
	CommandSources:   {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	SystemPath string
	MicPath    string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	sawCommand := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--system":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--system requires a path")
			}
			parsed.SystemPath = args[i]
		case "--mic":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--mic requires a path")
			}
			parsed.MicPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			if sawCommand {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			sawCommand = true
		}
	}

	if (parsed.SystemPath != "" || parsed.MicPath != "") && parsed.Command != CommandStart {
		return Parsed{}, errors.New("--system/--mic are only valid with the start command")
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  run         Run the monitoring daemon in the foreground
  start       Start a dual recording session (system audio + microphone)
  stop        Stop the active recording session
  status      Print current engine state and activity signals
  prompt-ack  Acknowledge a delivered record prompt
  sources     List audio-producing processes
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/earshot/config.conf)
  --system PATH   System-audio output file for start (default: generated)
  --mic PATH      Microphone output file for start (default: generated)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
