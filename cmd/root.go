// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domtree/internal/config"
	"github.com/xkilldash9x/domtree/internal/dom"
	"github.com/xkilldash9x/domtree/internal/layout"
	"github.com/xkilldash9x/domtree/internal/observability"
	"github.com/xkilldash9x/domtree/internal/style"
)

var osExit = os.Exit

// app is the state shared by every subcommand once PersistentPreRunE has run.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.ArenaCollector
}

// newRootCmd builds the command tree. Each call returns an independent tree so
// tests can run commands without leaking flag state.
func newRootCmd() *cobra.Command {
	a := &app{metrics: observability.NewArenaCollector("")}

	rootCmd := &cobra.Command{
		Use:           "domtree",
		Short:         "domtree parses HTML into an arena-backed tree and lays it out with flexbox.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(viper.New())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default is ./domtree.yaml, then $HOME/.domtree/domtree.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newLayoutCmd(a),
		newQueryCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// initialize loads configuration and sets up logging.
func (a *app) initialize(v *viper.Viper) error {
	cfg, err := config.Load(v, a.cfgFile)
	if err != nil {
		observability.InitializeLogger(config.NewDefaultConfig().Logger())
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	a.cfg = cfg
	observability.InitializeLogger(cfg.Logger())
	a.logger = observability.GetLogger()
	a.logger.Debug("Starting domtree", zap.String("version", Version))
	return nil
}

// treeOptions wires the configured engines and logger into a new tree.
func (a *app) treeOptions() []dom.Option {
	sc, lc := a.cfg.Style(), a.cfg.Layout()
	styles := style.NewEngine(
		style.WithLogger(a.logger),
		style.WithBaseFontSize(sc.BaseFontSize),
		style.WithDefaultLineHeight(sc.DefaultLineHeight),
		style.WithTextWidthFactor(sc.TextWidthFactor),
		style.WithViewport(float64(lc.Width), float64(lc.Height)),
	)
	return []dom.Option{
		dom.WithLogger(a.logger),
		dom.WithCapacity(a.cfg.Tree().InitialCapacity),
		dom.WithStyleEngine(styles),
	}
}

func (a *app) direction() (layout.Direction, error) {
	raw := a.cfg.Layout().Direction
	dir, ok := layout.ParseDirection(strings.ToLower(raw))
	if !ok {
		return layout.DirectionInherit, fmt.Errorf("unknown direction %q", raw)
	}
	return dir, nil
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		osExit(1)
	}
}
