// Package cli is the gplan command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	gcal "github.com/jima/gcal-planner"
	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/config"
	"github.com/jima/gcal-planner/internal/logging"
	"github.com/jima/gcal-planner/internal/oracle"
	"github.com/jima/gcal-planner/internal/planner"
	"github.com/jima/gcal-planner/internal/store"
)

// Calendar is the provider the commands talk to.
type Calendar interface {
	calsync.Provider
	ListCalendars(ctx context.Context) ([]gcal.CalendarInfo, error)
}

// App holds the state shared by all commands.
type App struct {
	Version string

	cfgPath   string
	envFile   string
	logLevel  string
	logFormat string

	cfg   *config.Config
	paths gcal.Paths
	files *store.FileStore

	// Connect opens the configured calendar.
	Connect func(ctx context.Context) (Calendar, error)
	// Completer overrides the OpenAI client when set.
	Completer oracle.Completer
}

// Execute runs the command tree and prints failures as an error response.
func Execute(ctx context.Context, version string) error {
	root := NewRootCommand(&App{Version: version})
	if err := root.ExecuteContext(ctx); err != nil {
		_ = writeResponse(root.OutOrStdout(), NewErrorResponse(errorCode(err), err.Error()))
		return err
	}
	return nil
}

// NewRootCommand builds the gplan command tree around a.
func NewRootCommand(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "gplan",
		Short: "Plan flexible events around your Google Calendar",
		Long: `gplan places flexible events into free slots of your Google Calendar,
respecting priorities, working hours and fixed commitments, and keeps a
record of what it pushed so a sync can be verified or reverted.`,
		Version:           a.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/gcal-planner/config.yaml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file to load")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (overrides config)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: console or json (overrides config)")

	root.AddCommand(
		newTasksCommand(a),
		newSetupCommand(a),
		newRangesCommand(a),
		newAddCommand(a),
		newSyncCommand(a),
		newVerifyCommand(a),
		newRevertCommand(a),
		newAuthCommand(a),
		newCalendarsCommand(a),
		newShowCommand(a),
		newExportCommand(a),
		newDaemonCommand(a),
	)
	return root
}

func (a *App) init(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnv(a.envFile); err != nil {
		return err
	}

	path := a.cfgPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	a.cfg = cfg

	ctx := logging.Setup(cmd.Context(), logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Writer:  cmd.ErrOrStderr(),
		Service: "gplan",
		Version: a.Version,
	})
	cmd.SetContext(ctx)

	dir, err := cfg.ResolveDataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if a.files, err = store.NewFileStore(dir); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if a.paths, err = gcal.DefaultPaths(); err != nil {
		return fmt.Errorf("resolve auth paths: %w", err)
	}
	if a.Connect == nil {
		a.Connect = func(ctx context.Context) (Calendar, error) {
			c, err := gcal.Connect(ctx, a.paths, a.cfg.CalendarID)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	log.Ctx(ctx).Debug().Str("config", path).Str("data_dir", dir).Msg("initialized")
	return nil
}

// planner builds a Planner. When online is false no calendar is opened.
func (a *App) planner(ctx context.Context, online bool) (*planner.Planner, error) {
	var provider calsync.Provider
	if online {
		cal, err := a.Connect(ctx)
		if err != nil {
			return nil, err
		}
		provider = cal
	}

	var opts []planner.Option
	if a.cfg.Oracle.Enabled {
		switch key := os.Getenv(a.cfg.Oracle.APIKeyEnv); {
		case a.Completer != nil:
			opts = append(opts, planner.WithOracle(a.Completer))
		case key != "":
			opts = append(opts, planner.WithOracle(oracle.NewClient(key, a.cfg.Oracle.BaseURL)))
		default:
			log.Ctx(ctx).Warn().Str("env", a.cfg.Oracle.APIKeyEnv).Msg("oracle enabled but no API key set")
		}
	}
	return planner.New(a.cfg, a.files, provider, opts...)
}

func respond(w io.Writer, data any, format string, args ...any) error {
	return writeResponse(w, NewSuccessResponse(data, fmt.Sprintf(format, args...)))
}
