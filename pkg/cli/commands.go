package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/openclaw/kmsg/pkg/ax"
	"github.com/openclaw/kmsg/pkg/chat"
	"github.com/openclaw/kmsg/pkg/config"
	"github.com/openclaw/kmsg/pkg/core"
	"github.com/openclaw/kmsg/pkg/logger"
	"github.com/openclaw/kmsg/pkg/mcp"
	"github.com/openclaw/kmsg/pkg/ops"
	"github.com/openclaw/kmsg/pkg/pathcache"
	"github.com/openclaw/kmsg/pkg/window"
)

// runtime carries the injected application factory and lazily built
// engine state across one command invocation.
type runtime struct {
	connect func() (ax.Application, error)
}

// setup connects to the application and assembles the engine per the
// config file plus command-line overrides.
func (rt *runtime) setup(c *cli.Context) (*ops.Engine, *pathcache.Store, error) {
	cfg, err := rt.loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(config.GetHome(), 0o755); err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.ResolvedLogPath()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: log file unavailable: %v\n", err)
	}
	if c.Bool("trace-ax") || cfg.TraceAX {
		logger.EnableTrace(os.Stderr)
	}

	app, err := rt.connect()
	if err != nil {
		return nil, nil, err
	}

	store := pathcache.NewStore(cfg.ResolvedCachePath(), app.Fingerprint(), pathcache.Options{
		TTL: cfg.CacheTTL(),
	})

	ccfg := chat.DefaultConfig()
	ccfg.DeepRecovery = c.Bool("deep-recovery") || cfg.DeepRecovery
	if cfg.PollIntervalMS > 0 {
		ccfg.PollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	if cfg.OpenTimeoutMS > 0 {
		ccfg.OpenTimeout = time.Duration(cfg.OpenTimeoutMS) * time.Millisecond
	}

	wcfg := window.DefaultConfig()
	if cfg.PollIntervalMS > 0 {
		wcfg.PollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}

	resolver := chat.NewResolver(app, window.NewController(app, wcfg), store, ccfg)

	opts := ops.Options{
		KeepWindow: c.Bool("keep-window") || cfg.KeepWindow,
	}
	if cfg.SendTimeoutMS > 0 {
		opts.SendTimeout = time.Duration(cfg.SendTimeoutMS) * time.Millisecond
	}
	return ops.NewEngine(app, resolver, opts), store, nil
}

func (rt *runtime) loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadFromDir(config.GetHome())
}

// emit writes a payload as JSON or human text depending on --json.
func emit(c *cli.Context, payload interface{}, human func()) error {
	if c.Bool("json") {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}
	human()
	return nil
}

// commandError decorates failures with their stable code so scripted
// callers can branch without parsing prose.
func commandError(c *cli.Context, err error) error {
	if err == nil {
		return nil
	}
	code := core.CodeOf(err)
	if code == "" {
		return err
	}
	if c.Bool("json") {
		payload := map[string]interface{}{
			"ok": false,
			"error": map[string]interface{}{
				"code":    code,
				"message": err.Error(),
			},
		}
		if data, jerr := json.MarshalIndent(payload, "", "  "); jerr == nil {
			fmt.Fprintln(c.App.Writer, string(data))
		}
	}
	return cli.Exit(fmt.Sprintf("%s: %v", code, err), 1)
}

func (rt *runtime) readCommand() *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Read the latest messages of a chat",
		ArgsUsage: "<chat>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of messages to return",
				Value:   ops.DefaultReadLimit,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: kmsg read <chat>", 2)
			}
			engine, _, err := rt.setup(c)
			if err != nil {
				return commandError(c, err)
			}
			defer logger.Close()

			result, err := engine.Read(c.Args().First(), c.Int("limit"))
			if err != nil {
				return commandError(c, err)
			}
			return emit(c, result, func() {
				for _, m := range result.Messages {
					author := m.Author
					if m.Mine {
						author = "me"
					}
					if author == "" {
						author = "?"
					}
					fmt.Fprintf(c.App.Writer, "[%s] %s: %s\n", m.Time, author, m.Text)
				}
			})
		},
	}
}

func (rt *runtime) sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a text message to a chat",
		ArgsUsage: "<chat> <text>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: kmsg send <chat> <text>", 2)
			}
			engine, _, err := rt.setup(c)
			if err != nil {
				return commandError(c, err)
			}
			defer logger.Close()

			if err := engine.Send(c.Args().Get(0), c.Args().Get(1)); err != nil {
				return commandError(c, err)
			}
			return emit(c, map[string]interface{}{"ok": true}, func() {
				fmt.Fprintln(c.App.Writer, "sent")
			})
		},
	}
}

func (rt *runtime) sendImageCommand() *cli.Command {
	return &cli.Command{
		Name:      "send-image",
		Usage:     "Send an image file to a chat",
		ArgsUsage: "<chat> <path>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: kmsg send-image <chat> <path>", 2)
			}
			engine, _, err := rt.setup(c)
			if err != nil {
				return commandError(c, err)
			}
			defer logger.Close()

			if err := engine.SendImage(c.Args().Get(0), c.Args().Get(1)); err != nil {
				return commandError(c, err)
			}
			return emit(c, map[string]interface{}{"ok": true}, func() {
				fmt.Fprintln(c.App.Writer, "sent")
			})
		},
	}
}

func (rt *runtime) statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Report application and window availability",
		Action: func(c *cli.Context) error {
			engine, _, err := rt.setup(c)
			if err != nil {
				return commandError(c, err)
			}
			defer logger.Close()

			st := engine.Status()
			return emit(c, st, func() {
				fmt.Fprintf(c.App.Writer, "running: %v\nwindow: %v\nbuild: %s\n",
					st.Running, st.WindowAvailable, st.Fingerprint)
			})
		},
	}
}

func (rt *runtime) mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the kmsg operations as MCP tools over stdio",
		Action: func(c *cli.Context) error {
			engine, _, err := rt.setup(c)
			if err != nil {
				return commandError(c, err)
			}
			defer logger.Close()

			return mcp.NewServer(engine, c.App.Version).Start(c.Context)
		},
	}
}

func (rt *runtime) cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and manage the element path cache",
		Subcommands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Write the cache document to stdout",
				Action: func(c *cli.Context) error {
					_, store, err := rt.setup(c)
					if err != nil {
						return commandError(c, err)
					}
					defer logger.Close()
					return commandError(c, store.Export(c.App.Writer))
				},
			},
			{
				Name:      "import",
				Usage:     "Replace the cache with a document file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: kmsg cache import <file>", 2)
					}
					_, store, err := rt.setup(c)
					if err != nil {
						return commandError(c, err)
					}
					defer logger.Close()

					f, err := os.Open(c.Args().First())
					if err != nil {
						return err
					}
					defer f.Close()
					return commandError(c, store.Import(f))
				},
			},
			{
				Name:  "clear",
				Usage: "Drop every cached path",
				Action: func(c *cli.Context) error {
					_, store, err := rt.setup(c)
					if err != nil {
						return commandError(c, err)
					}
					defer logger.Close()
					return commandError(c, store.Clear())
				},
			},
		},
	}
}
