package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/butter-bot-machines/procmux/pkg/config"
	"github.com/butter-bot-machines/procmux/pkg/config/env"
	"github.com/butter-bot-machines/procmux/pkg/launcher"
	"github.com/butter-bot-machines/procmux/pkg/logging"
	slogging "github.com/butter-bot-machines/procmux/pkg/logging/slog"
	"github.com/butter-bot-machines/procmux/pkg/output"
	"github.com/butter-bot-machines/procmux/pkg/process"
	osprocess "github.com/butter-bot-machines/procmux/pkg/process/os"
	"github.com/butter-bot-machines/procmux/pkg/watcher"
)

const Version = "0.1.0"

// ErrRunFailed is returned when a start or join failure forced cleanup
var ErrRunFailed = errors.New("processes were killed after a failure")

// CLI represents the command-line interface
type CLI struct {
	stdout io.Writer // nil selects the real terminal, with colour detection
	stderr io.Writer
	env    config.Environment
	logger logging.Logger

	logLevel   string
	logFormat  string
	configPath string
	procs      []string
	color      string
	noWatch    bool
	force      bool
}

// NewCLI creates a new CLI instance
func NewCLI() *CLI {
	return &CLI{
		stderr: os.Stderr,
		env:    env.New(),
	}
}

// Run executes the CLI with the given arguments
func (c *CLI) Run(args []string) error {
	return c.RunContext(context.Background(), args)
}

// RunContext executes the CLI; cancelling ctx interrupts a running set of
// processes like SIGINT does
func (c *CLI) RunContext(ctx context.Context, args []string) error {
	root := c.newRootCommand()
	root.SetArgs(args)
	root.SetOut(c.out())
	root.SetErr(c.stderr)
	return root.ExecuteContext(ctx)
}

func (c *CLI) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "procmux",
		Short: "Run a set of processes with prefixed, interleaved output",
		Long: `procmux starts every configured process, prefixes each line of their
combined output with the process name and kills all of them when one fails
to start or when interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: c.initLogger,
		RunE:              c.runProcesses,
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "text", "log format: text or json")
	c.addRunFlags(root.Flags())

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the processes and multiplex their output (default)",
		Args:  cobra.NoArgs,
		RunE:  c.runProcesses,
	}
	c.addRunFlags(runCmd.Flags())

	initCmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write a starter " + config.DefaultFile,
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.Init,
	}
	initCmd.Flags().BoolVar(&c.force, "force", false, "overwrite an existing file")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the resolved processes",
		Args:  cobra.NoArgs,
		RunE:  c.Check,
	}
	checkCmd.Flags().StringVarP(&c.configPath, "config", "c", "", "config file (default $"+config.EnvConfig+" or "+config.DefaultFile+")")
	checkCmd.Flags().StringArrayVarP(&c.procs, "proc", "p", nil, "process as NAME=COMMAND, repeatable; replaces the config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the version of procmux",
		Args:  cobra.NoArgs,
		RunE:  c.Version,
	}

	root.AddCommand(runCmd, initCmd, checkCmd, versionCmd)
	return root
}

func (c *CLI) addRunFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "config file (default $"+config.EnvConfig+" or "+config.DefaultFile+")")
	fs.StringArrayVarP(&c.procs, "proc", "p", nil, "process as NAME=COMMAND, repeatable; replaces the config file")
	fs.StringVar(&c.color, "color", "", "prefix colour: auto, always or never")
	fs.BoolVar(&c.noWatch, "no-watch", false, "do not watch the config file for changes")
}

func (c *CLI) out() io.Writer {
	if c.stdout == nil {
		return os.Stdout
	}
	return c.stdout
}

// initLogger builds the diagnostics logger from flags and environment
func (c *CLI) initLogger(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(c.firstSet(c.logLevel, config.EnvLogLevel, ""))
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	format, err := logging.ParseFormat(c.logFormat)
	if err != nil {
		return fmt.Errorf("--log-format: %w", err)
	}
	c.logger = slogging.NewLogger(level, c.stderr, format)
	return nil
}

// firstSet returns flag when set, then the environment variable, then fallback
func (c *CLI) firstSet(flag, envKey, fallback string) string {
	if flag != "" {
		return flag
	}
	return c.env.GetStringWithDefault(envKey, fallback)
}

// resolve returns the descriptors to run and the config it came from. cfg
// is nil when processes were given with --proc.
func (c *CLI) resolve() ([]process.Descriptor, *config.Manager, error) {
	if len(c.procs) > 0 {
		descs := make([]process.Descriptor, 0, len(c.procs))
		seen := make(map[string]bool, len(c.procs))
		for _, v := range c.procs {
			d, err := config.ParseProcessFlag(v)
			if err != nil {
				return nil, nil, fmt.Errorf("--proc: %w", err)
			}
			if seen[d.Name] {
				return nil, nil, fmt.Errorf("--proc: %w: duplicate name %q", config.ErrInvalidConfig, d.Name)
			}
			seen[d.Name] = true
			descs = append(descs, d)
		}
		return descs, nil, nil
	}

	mgr := config.NewManager(c.firstSet(c.configPath, config.EnvConfig, config.DefaultFile))
	if err := mgr.Load(); err != nil {
		return nil, nil, err
	}
	descs, err := mgr.GetConfig().Descriptors()
	if err != nil {
		return nil, nil, err
	}
	return descs, mgr, nil
}

// sink returns the console sink and whether prefixes are coloured
func (c *CLI) sink(cfg *config.Manager) (output.Sink, bool, error) {
	fallback := ""
	if cfg != nil {
		fallback = cfg.GetConfig().Color
	}
	mode, err := output.ParseColorMode(c.firstSet(c.color, config.EnvColor, fallback))
	if err != nil {
		return nil, false, fmt.Errorf("--color: %w", err)
	}

	if c.stdout == nil {
		w, color := output.Stdout(mode)
		return output.NewConsole(w), color, nil
	}
	return output.NewConsole(c.stdout), mode == output.ColorAlways, nil
}

func (c *CLI) runProcesses(cmd *cobra.Command, args []string) error {
	descs, cfg, err := c.resolve()
	if err != nil {
		return err
	}
	if cfg != nil && c.logLevel == "" && c.env.GetString(config.EnvLogLevel) == "" {
		if level, err := logging.ParseLevel(cfg.GetConfig().LogLevel); err == nil {
			c.logger.SetLevel(level)
		}
	}

	sink, color, err := c.sink(cfg)
	if err != nil {
		return err
	}

	l, err := launcher.New(launcher.Options{
		Manager:     osprocess.NewManager(osprocess.Options{Sink: sink, Logger: c.logger, Color: color}),
		Descriptors: descs,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}

	if cfg != nil {
		if w := c.watchConfig(cfg.Path()); w != nil {
			defer w.Stop()
		}
	}

	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			c.logger.Info("received signal", "signal", sig.String())
			cancel(launcher.ErrInterrupted)
		case <-ctx.Done():
		}
	}()

	c.logger.Debug("starting processes", "count", len(descs))
	report := l.Run(ctx)

	for _, p := range l.Processes() {
		c.logger.Debug("process finished", "process", p.Name(), "exit_code", p.ExitCode())
	}
	if err := report.KillErr(); err != nil {
		c.logger.Warn("cleanup incomplete", "error", err)
	}

	switch {
	case report.Cause == nil:
		return nil
	case report.Interrupted():
		c.logger.Info("interrupted, all processes killed")
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrRunFailed, report.Cause)
	}
}

// watchConfig starts warning about edits to the config file at path. It
// returns nil when watching is disabled or cannot be set up.
func (c *CLI) watchConfig(path string) watcher.FileWatcher {
	if c.noWatch || c.env.GetBool(config.EnvNoWatch) {
		return nil
	}
	w, err := watcher.New(watcher.Options{Path: path, Logger: c.logger})
	if err != nil {
		c.logger.Warn("config watch disabled", "error", err)
		return nil
	}
	return w
}

// Init writes a starter config file into the given directory
func (c *CLI) Init(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	path := filepath.Join(dir, config.DefaultFile)
	if err := config.WriteDefault(path, c.force); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized procmux config in %s\n", path)
	return nil
}

// Check validates the configuration and prints one line per process
func (c *CLI) Check(cmd *cobra.Command, args []string) error {
	descs, _, err := c.resolve()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, d := range descs {
		line := output.FormatLine(output.Prefix(d.Name, d.Padding), strings.Join(d.Command, " "))
		if d.Delay > 0 {
			line += fmt.Sprintf("  (delay %s)", d.Delay)
		}
		fmt.Fprintln(out, line)
	}
	c.logger.Info("configuration is valid", "processes", len(descs))
	return nil
}

// Version displays version information
func (c *CLI) Version(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "procmux version %s\n", Version)
	return nil
}
