package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/jarvis"
	"github.com/hupe1980/jarvis/config"
	"github.com/hupe1980/jarvis/console"
	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/logging"
	"github.com/hupe1980/jarvis/session"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

type app struct {
	configPath string
	logLevel   string
	debug      bool
	provider   string

	cfg    *config.Config
	cfgErr error // out of range values; only setup may proceed
	logger *logging.JarvisLogger
	logOut io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "Jarvis - a multi-model AI assistant with personality",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
		RunE: a.runChat,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.jarvis/config.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "shorthand for --log-level=debug")
	root.PersistentFlags().StringVarP(&a.provider, "provider", "p", "", "provider to use: openai, claude or gemini")

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Start an interactive chat session",
			Args:  cobra.NoArgs,
			RunE:  a.runChat,
		},
		&cobra.Command{
			Use:   "setup",
			Short: "Configure API keys and defaults",
			Args:  cobra.NoArgs,
			RunE:  a.runSetup,
		},
		&cobra.Command{
			Use:   "ask <prompt>",
			Short: "Send a single prompt and print the reply",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.runAsk,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			// no config or log file needed
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "jarvis %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			},
		},
	)

	return root
}

func (a *app) init() error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}

	if err := config.LoadDotEnv(".env", filepath.Join(dir, ".env")); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	var (
		cfg     *config.Config
		loadErr error
	)
	if a.configPath != "" {
		cfg, loadErr = config.LoadFromPath(a.configPath)
	} else {
		cfg, loadErr = config.Load()
	}
	if loadErr != nil && !errors.Is(loadErr, config.ErrCorrupt) && !errors.Is(loadErr, config.ErrInvalid) {
		return loadErr
	}
	a.cfg = cfg
	if errors.Is(loadErr, config.ErrInvalid) {
		a.cfgErr = loadErr
	}

	level := cfg.LogLevel()
	if a.logLevel != "" {
		if level, err = logging.ParseLevel(a.logLevel); err != nil {
			return err
		}
	}
	if a.debug {
		level = logging.LogLevelDebug
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(dir, "jarvis.log")
	}
	out := logging.FileWriter(logFile)
	a.logOut = out

	a.logger = logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    out,
		Component: "jarvis",
	})

	if errors.Is(loadErr, config.ErrCorrupt) {
		// defaults are in use, the file was moved aside
		a.logger.Error("config could not be decoded", "error", loadErr)
		fmt.Fprintln(os.Stderr, "warning:", loadErr)
	}
	if a.cfgErr != nil {
		a.logger.Warn("config has invalid values", "error", a.cfgErr)
	}

	return nil
}

func (a *app) close() {
	if a.logOut != nil {
		_ = a.logOut.Close()
	}
}

func (a *app) requestedProvider() (core.ProviderID, error) {
	if a.cfgErr != nil {
		return "", fmt.Errorf("%w (run 'jarvis setup' to fix it)", a.cfgErr)
	}
	if a.provider == "" {
		return "", nil
	}
	return core.ParseProviderID(a.provider)
}

func (a *app) newJarvis(requested core.ProviderID) *jarvis.Jarvis {
	return jarvis.New(a.cfg, func(o *jarvis.Options) {
		o.Provider = requested
		o.Fallback = a.cfg.Provider()
		if a.cfg.Persona != "" {
			o.Persona = a.cfg.Persona
		}
		o.Logger = a.logger
	})
}

func (a *app) runChat(cmd *cobra.Command, _ []string) error {
	requested, err := a.requestedProvider()
	if err != nil {
		return err
	}

	dir, _ := config.Dir()
	history := a.cfg.UI.HistoryFile
	if history == "" && dir != "" {
		history = filepath.Join(dir, "history")
	}

	con := console.New(func(o *console.Options) {
		o.Out = cmd.OutOrStdout()
		o.HistoryFile = history
		o.EchoDelay = time.Duration(a.cfg.UI.EchoDelayMS) * time.Millisecond
		o.NoColor = a.cfg.UI.NoColor
	})
	defer con.Close()

	sess, err := a.newJarvis(requested).Start(con)
	if err != nil {
		a.logger.Error("session start failed", "error", err)
		return err
	}

	if requested != "" && sess.Provider() != requested {
		con.Warn(fmt.Sprintf("%s is unavailable currently. Using available provider.", requested.DisplayName()))
	}

	con.Banner(sess.Provider(), session.Shortcuts(sess.Available()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := sess.Run(ctx)
	con.Goodbye()

	a.logger.WithSession(sess.ID()).Info("session ended", "turns", sess.Transcript().Turns())

	return runErr
}

func (a *app) runSetup(cmd *cobra.Command, _ []string) error {
	con := console.New(func(o *console.Options) {
		o.Out = cmd.OutOrStdout()
		o.NoColor = a.cfg.UI.NoColor
	})
	defer con.Close()

	if a.cfgErr != nil {
		con.Warn(a.cfgErr.Error())
	}

	if err := con.Setup(a.cfg); err != nil {
		if errors.Is(err, core.ErrInterrupted) {
			con.Warn("Setup aborted, nothing saved.")
			return nil
		}
		return err
	}

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	if err := a.cfg.Save(); err != nil {
		a.logger.Error("saving config failed", "error", err)
		return err
	}

	a.logger.Info("configuration saved", "path", a.cfg.Path(), "providers", len(a.cfg.Available()))
	con.Saved(a.cfg.Path())

	return nil
}

func (a *app) runAsk(cmd *cobra.Command, args []string) error {
	requested, err := a.requestedProvider()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := a.logger.StartTimer("ask")
	defer done()

	ch, err := a.newJarvis(requested).Ask(ctx, requested, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var failure string
	for f := range ch {
		if f.Failed {
			failure = f.Text
			continue
		}
		fmt.Fprint(out, f.Text)
	}
	fmt.Fprintln(out)

	if failure != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), failure)
		return errors.New(strings.TrimPrefix(failure, "Error: "))
	}

	return ctx.Err()
}

var _ session.Presenter = (*console.Console)(nil)
