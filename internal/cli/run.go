package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pablasso/liftoff/internal/config"
	"github.com/pablasso/liftoff/internal/demo"
	"github.com/pablasso/liftoff/internal/executor"
	"github.com/pablasso/liftoff/internal/logging"
	"github.com/pablasso/liftoff/internal/state"
	"github.com/pablasso/liftoff/internal/task"
	"github.com/pablasso/liftoff/internal/tui"
)

var (
	runConfigPath  string
	runPlain       bool
	runConcurrency int
	runMinSplash   time.Duration
	runSpeed       float64
	runDebug       bool
)

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to liftoff.yaml")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "Log progress to the terminal instead of the splash screen")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Override max concurrent tasks per batch")
	runCmd.Flags().DurationVar(&runMinSplash, "min-splash", 0, "Override the minimum splash duration")
	runCmd.Flags().Float64Var(&runSpeed, "speed", 1.0, "Scale factor for the demo task latencies")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Enable debug logs (plain mode)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo boot sequence",
	Long:  `Execute the built-in demo boot sequence through all four stages, with a splash screen showing live progress.`,
	Args:  cobra.NoArgs,
	RunE:  runBoot,
}

func runBoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Options.MaxConcurrentTasks = runConcurrency
	}
	if cmd.Flags().Changed("min-splash") {
		cfg.Options.MinSplashDuration = runMinSplash
	}
	if runDebug {
		cfg.Options.EnableDebugLogs = true
	}

	// Console logging would fight the alternate screen, so the splash mode
	// runs with a nop logger and the store is the only progress surface.
	logger := zap.NewNop()
	if runPlain {
		logger, err = logging.New(cfg.Options.EnableDebugLogs)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer logger.Sync()
	}

	registry := task.NewRegistry(logger)
	if err := registry.RegisterAll(demo.Tasks(demo.Speed(runSpeed))); err != nil {
		return err
	}

	store := state.NewStore()
	if cfg.JournalPath != "" {
		store.AddListener(state.NewJournal(cfg.JournalPath).Listener())
	}

	in := executor.New(registry, store, cfg.Options, logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if runPlain {
		store.AddListener(consoleListener())
		if err := in.Run(ctx); err != nil {
			return err
		}
		fmt.Print(in.Report().String())
		return nil
	}
	return tui.Run(ctx, in)
}

func loadConfig() (config.Config, error) {
	if runConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(runConfigPath)
}

// consoleListener prints one line per transition in plain mode.
func consoleListener() state.Listener {
	return state.Listener{
		OnStageStart: func(stage task.Stage) {
			fmt.Printf("=== stage %s\n", stage)
		},
		OnTaskComplete: func(stage task.Stage, ts state.TaskState) {
			fmt.Printf("  ok   %-24s %s\n", ts.ID, ts.Duration.Round(time.Millisecond))
		},
		OnTaskFail: func(stage task.Stage, ts state.TaskState) {
			msg := ""
			if ts.Err != nil {
				msg = ts.Err.Message
			}
			fmt.Printf("  fail %-24s %s\n", ts.ID, msg)
		},
		OnProgressUpdate: func(overall int) {
			fmt.Printf("  [%3d%%]\n", overall)
		},
	}
}
