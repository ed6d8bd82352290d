// Package app is the process entry point glue: standard flags, config
// loading, and the exit-code policy separating clean stops, expected
// failures and bugs.
package app

import (
	"strings"

	"github.com/urfave/cli/v2"

	"git.tatikoma.dev/corpix/keel/config"
	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
)

type (
	Context = cli.Context
	Command = cli.Command
	Flag    = cli.Flag
	Flags   = []Flag
)

const (
	FlagConfig  = "config"
	FlagVerbose = "verbose"
	FlagDebug   = "debug"
)

// RunFunc is the application body, invoked with the loaded config.
// Returning an error marked Known exits 1; any other error exits 2.
type RunFunc func(ctx *Context, cfg *config.Config) error

type App struct {
	cli        *cli.App
	prefix     string
	bugtracker string
	cfg        *config.Config
	debug      bool
}

type Option func(*App)

// WithBugtracker points operators hitting an unexpected error at the
// project bugtracker.
func WithBugtracker(url string) Option {
	return func(a *App) { a.bugtracker = url }
}

// WithFlags appends application-specific flags to the standard ones.
func WithFlags(flags ...Flag) Option {
	return func(a *App) { a.cli.Flags = append(a.cli.Flags, flags...) }
}

// WithCommands adds sub-commands besides the default action.
func WithCommands(commands ...*Command) Option {
	return func(a *App) { a.cli.Commands = append(a.cli.Commands, commands...) }
}

func New(name, usage string, run RunFunc, opts ...Option) *App {
	a := &App{
		prefix: strings.ToUpper(strings.ReplaceAll(name, "-", "_")),
	}
	a.cli = &cli.App{
		Name:  name,
		Usage: usage,
		Flags: Flags{
			&cli.PathFlag{
				Name:    FlagConfig,
				Aliases: []string{"c"},
				Usage:   "configuration file path",
				Value:   name + ".yaml",
			},
			&cli.BoolFlag{
				Name:  FlagVerbose,
				Usage: "set info log level",
			},
			&cli.BoolFlag{
				Name:     FlagDebug,
				Usage:    "set debug log level",
				Category: "debug",
			},
		},
		Before: a.before,
		Action: func(ctx *cli.Context) error {
			return run(ctx, a.cfg)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) before(ctx *cli.Context) error {
	if ctx.Bool(FlagVerbose) {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
	a.debug = ctx.Bool(FlagDebug)

	path := ctx.Path(FlagConfig)
	cfg, err := config.Load(path, a.prefix)
	if err != nil {
		// the default config file is optional, an explicitly given
		// one is not
		if errors.Is(err, config.ErrNotFound) && !ctx.IsSet(FlagConfig) {
			cfg = config.New(a.prefix, nil)
		} else {
			return err
		}
	}
	config.SetLogLevel(cfg, a.debug)
	a.cfg = cfg
	return nil
}

// Exec runs the application and returns its process exit code.
func (a *App) Exec(args []string) int {
	return a.Exit(a.cli.Run(args))
}

// Exit maps an error to an exit code: 0 for nil, 1 for a known
// (expected) failure, 2 for anything else, which is a bug worth
// reporting. The original failure is logged with its full context in
// debug mode, message-only otherwise.
func (a *App) Exit(err error) int {
	switch {
	case err == nil:
		return 0

	case errors.IsKnown(err):
		if a.debug {
			log.Error().Msgf("%+v", err)
		} else {
			log.Error().Msg(err.Error())
		}
		return 1

	default:
		log.Error().Msgf("unexpected error: %+v", err)
		if a.bugtracker != "" {
			log.Error().Msgf("please fill a bug report at %q", a.bugtracker)
		}
		return 2
	}
}
