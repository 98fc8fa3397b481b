package ffmpeg

import (
	"strings"
)

// Command is a fully-built ffmpeg invocation: the binary to exec and the
// argument list produced by CommandBuilder. Command has no process-running
// methods of its own; the probe runs it via os/exec (see decode.runCapture),
// since ffmpeg here always runs as a short-lived filter over a fixed byte
// buffer, not a long-running stream.
type Command struct {
	Binary   string
	Args     []string
	Input    string
	Output   string
	LogLevel string
}

// CommandBuilder builds ffmpeg commands with a fluent API.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	input      string
	outputArgs []string
	output     string
	logLevel   string
}

// NewCommandBuilder creates a new ffmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the ffmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// Input sets the input source.
func (b *CommandBuilder) Input(input string) *CommandBuilder {
	b.input = input
	return b
}

// InputArgs adds arbitrary input arguments.
func (b *CommandBuilder) InputArgs(args ...string) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, args...)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build assembles the final command.
func (b *CommandBuilder) Build() *Command {
	var args []string

	args = append(args, "-loglevel", b.logLevel)
	args = append(args, b.globalArgs...)
	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)
	args = append(args, b.outputArgs...)
	args = append(args, b.output)

	return &Command{
		Binary:   b.binary,
		Args:     args,
		Input:    b.input,
		Output:   b.output,
		LogLevel: b.logLevel,
	}
}

// String returns the command as a single shell-like string, for logging.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}
