// Package cli provides the command-line interface for kmsg.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/openclaw/kmsg/pkg/ax"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "json",
		Usage:   "Emit machine-readable JSON output",
		EnvVars: []string{"KMSG_JSON"},
	},
	&cli.BoolFlag{
		Name:    "deep-recovery",
		Usage:   "Permit app relaunch and forced reopen when no window is usable",
		EnvVars: []string{"KMSG_DEEP_RECOVERY"},
	},
	&cli.BoolFlag{
		Name:    "keep-window",
		Usage:   "Leave chat windows opened by kmsg on screen",
		EnvVars: []string{"KMSG_KEEP_WINDOW"},
	},
	&cli.BoolFlag{
		Name:    "trace-ax",
		Usage:   "Trace accessibility resolution stages to stderr",
		EnvVars: []string{"KMSG_TRACE_AX"},
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Config file path (defaults to <home>/config.yaml)",
		EnvVars: []string{"KMSG_CONFIG"},
	},
}

// NewApp builds the CLI around an application factory, injected so
// tests can supply a fake accessibility tree.
func NewApp(connect func() (ax.Application, error)) *cli.App {
	if connect == nil {
		connect = ax.Connect
	}
	rt := &runtime{connect: connect}

	return &cli.App{
		Name:    "kmsg",
		Usage:   "Read and send KakaoTalk messages via the accessibility tree",
		Version: Version,
		Description: `kmsg automates the desktop KakaoTalk client through the OS
accessibility tree: it resolves chat windows, reads transcripts, and
sends messages, with typed error codes for every failure mode.

Examples:
  kmsg read 지연 --limit 20 --json
  kmsg send 지연 "저녁 먹자"
  kmsg send-image 지연 ./photo.png
  kmsg status`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			rt.readCommand(),
			rt.sendCommand(),
			rt.sendImageCommand(),
			rt.statusCommand(),
			rt.cacheCommand(),
			rt.mcpCommand(),
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp(nil).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
