package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/simhook/bridge"
	"github.com/wippyai/simhook/config"
	"github.com/wippyai/simhook/engine"
	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/hook"
)

// app carries the state shared by every command of one invocation.
type app struct {
	loader  *config.Loader
	cfg     *config.Config
	cfgFile string
	logger  *zap.Logger
	hook    *hook.Hook
}

func newRootCmd() *cobra.Command {
	a := &app{loader: config.NewLoader()}
	var interactive bool

	root := &cobra.Command{
		Use:   "simhook",
		Short: "Run SimLib computations inside an embedded WebAssembly runtime",
		Long: `simhook loads the SimLib guest library into an embedded wazero runtime and
exposes its computations: search patterns, bearing ellipses, navigation,
detection bounds and sweep widths. Failed calls are retried once after a
reset and otherwise reported as sentinel values.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interactive {
				return a.runInteractive(cmd)
			}
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.simhook.yaml)")
	pf.String("lib", "", "library directory scanned for .wasm modules")
	pf.StringArray("module", nil, "extra module file, repeatable")
	pf.String("impl", engine.DefaultImplementationSet, "implementation set passed to the guest")
	pf.Uint32("memory-limit-mb", 0, "guest memory limit in MB, 0 for the runtime default")
	pf.String("cache-dir", "", "directory of the on-disk compilation cache")
	pf.Bool("reference", false, "load the embedded reference guest")
	pf.String("reset", hook.ResetRestart.String(), "reset between a failed call and its retry (restart|none)")
	pf.String("log-level", "warn", "log level (debug|info|warn|error)")
	pf.StringP("output", "o", config.OutputText, "output format (text|json|yaml)")
	root.Flags().BoolVarP(&interactive, "interactive", "i", false, "start the interactive console")

	root.AddCommand(
		a.versionCmd(),
		a.printArgsCmd(),
		a.acosCmd(),
		a.patternCmd(),
		a.ellipseCmd(),
		a.navCmd(),
		a.pdCmd(),
		a.sweepWidthCmd(),
		a.randomCmd(),
		a.demoCmd(),
		a.symbolsCmd(),
		a.interactiveCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := a.loader.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := a.loader.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger
	engine.SetLogger(logger)
	bridge.SetLogger(logger)
	if f := a.loader.FileUsed(); f != "" {
		logger.Debug("using config file", zap.String("file", f))
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	var err error
	if a.hook != nil {
		err = a.hook.Close(ctx)
		a.hook = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

// facade opens the hook on first use. Guest console output goes to the
// command's stdout.
func (a *app) facade(cmd *cobra.Command) (*hook.Hook, error) {
	if a.hook != nil {
		return a.hook, nil
	}
	hc, err := a.cfg.HookConfig(cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	a.hook = hook.New(cmd.Context(), hc)
	if err := a.hook.Err(); err != nil {
		a.logger.Warn("guest runtime unavailable, results will be sentinels", zap.Error(err))
	} else if missing := a.hook.Missing(); len(missing) > 0 {
		a.logger.Warn("guest library incomplete", zap.Strings("missing", missing))
	}
	return a.hook, nil
}

// failed returns the error behind the sentinel a command has just
// rendered, if any.
func (a *app) failed() error {
	if a.hook == nil {
		return nil
	}
	return a.hook.LastError()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindMalformedInput).
			Value(level).
			Detail("unknown log level %q", level).
			Cause(err).
			Build()
	}
	zc := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
