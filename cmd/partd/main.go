// Command partd is a thin CLI over the partition engine: create a
// partition directory, push text elements, inspect tips, merge divergent
// tips, and flush to disk. It exists to exercise the engine end to end
// through a cobra command tree.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/untoldecay/partitionstore/internal/config"
	"github.com/untoldecay/partitionstore/internal/diag"
)

var (
	flagDir     string
	flagVerbose bool
	flagLogFile string
	flagFast    bool

	sink       diag.Sink
	logCleanup func()
)

var (
	styleErr  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleHint = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var rootCmd = &cobra.Command{
	Use:           "partd",
	Short:         "Content-addressed partition store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagVerbose {
			sink = diag.ToWriter(os.Stderr)
		}
		if flagLogFile != "" {
			fileSink, lj := diag.FileSink(flagLogFile, 10, 3, 28)
			logCleanup = func() { lj.Close() }
			if flagVerbose {
				prev := sink
				sink = func(format string, a ...any) {
					diag.Printf(prev, format, a...)
					diag.Printf(fileSink, format, a...)
				}
			} else {
				sink = fileSink
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			logCleanup()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "partition directory (required)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "print diagnostics to stderr")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "also write diagnostics to a rotating log file")
	rootCmd.PersistentFlags().BoolVar(&flagFast, "fast", true, "load/write in fast mode (newest snapshot only)")
}

func requireDir() (string, error) {
	if flagDir == "" {
		return "", fmt.Errorf("--dir is required")
	}
	abs, err := filepath.Abs(flagDir)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func overridePath(dir string) string {
	return filepath.Join(dir, "partition.toml")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, styleErr.Render("error:"), err)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
