package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kamusis/envdiff/internal/config"
	"github.com/kamusis/envdiff/internal/dbclient"
	"github.com/kamusis/envdiff/internal/extract"
	"github.com/kamusis/envdiff/internal/logging"
	"github.com/kamusis/envdiff/internal/registry"
	"github.com/kamusis/envdiff/internal/report"
	"github.com/kamusis/envdiff/internal/ui"
)

// errNothingCompared is returned after the report is written when no
// selected connection could be inspected.
var errNothingCompared = errors.New("no selected connection could be inspected")

// run is the state shared by the comparison commands.
type run struct {
	cfg      *config.Config
	logger   *zap.Logger
	selected []config.Connection
	excluded []config.Connection
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	regex, _ := cmd.Flags().GetString("regex")
	workers, _ := cmd.Flags().GetInt("workers")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	outputDir, _ := cmd.Flags().GetString("output-dir")

	store, err := config.NewCredentialStore("", os.Getenv(config.SecretEnvVar))
	if err != nil {
		return nil, err
	}
	return config.Load(config.LoadOptions{
		Path:    path,
		EnvFile: envFile,
		Environ: os.Environ(),
		Overrides: config.Overrides{
			Filter:         config.Filter{Include: include, Exclude: exclude, Regex: regex},
			Workers:        workers,
			ExtractTimeout: timeout,
			OutputDir:      outputDir,
		},
		Passwords: store,
	})
}

// prepare loads the configuration, builds the logger and applies the filter.
// kind names the default log file.
func prepare(cmd *cobra.Command, kind string) (*run, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	level, _ := cmd.Flags().GetString("log-level")
	logFile, _ := cmd.Flags().GetString("log-file")
	if logFile == "" {
		logFile = filepath.Join(cfg.OutputDir, kind+"_comparison.log")
	}
	logger, err := logging.New(level, logFile)
	if err != nil {
		return nil, err
	}

	spec := registry.FromConfig(cfg.Filter)
	selected, excluded, err := registry.Partition(cfg.Connections, spec)
	if err != nil {
		return nil, err
	}
	logger.Info("connections selected",
		zap.String("filter", spec.String()),
		zap.Int("configured", len(cfg.Connections)),
		zap.Int("selected", len(selected)),
		zap.Int("excluded", len(excluded)))
	if len(selected) == 0 {
		return nil, fmt.Errorf("no connections selected (%d configured, filter %s)", len(cfg.Connections), spec)
	}

	if prompt, _ := cmd.Flags().GetBool("prompt"); prompt {
		selected, err = resolvePasswords(selected, &ui.PromptPasswords{})
		if err != nil {
			return nil, err
		}
	}
	return &run{cfg: cfg, logger: logger, selected: selected, excluded: excluded}, nil
}

// resolvePasswords returns conns with missing passwords taken from src.
// Only the selected connections are asked for; conns is left untouched.
func resolvePasswords(conns []config.Connection, src config.PasswordSource) ([]config.Connection, error) {
	out := make([]config.Connection, 0, len(conns))
	for _, c := range conns {
		if c.Password == "" {
			pw, ok, err := src.Password(c.ID())
			if err != nil {
				return nil, fmt.Errorf("password for %s: %w", c.ID(), err)
			}
			if ok {
				c = c.WithPassword(pw)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *run) extractOptions() extract.Options {
	return extract.Options{Workers: r.cfg.Workers, Timeout: r.cfg.ExtractTimeout}
}

func (r *run) collector() *extract.Collector {
	return extract.NewCollector(dbclient.New(r.cfg.Limits, r.logger), r.extractOptions(), r.logger)
}

// write renders the report to the workbook, the optional delimited files and
// the console.
func (r *run) write(cmd *cobra.Command, rep *report.Report, workbook, prefix string) error {
	out := cmd.OutOrStdout()
	writers := []report.Writer{
		&report.ExcelWriter{Path: filepath.Join(r.cfg.OutputDir, workbook)},
	}
	if withCSV, _ := cmd.Flags().GetBool("csv"); withCSV {
		writers = append(writers, &report.CSVWriter{Dir: r.cfg.OutputDir, Prefix: prefix, Separator: r.cfg.CSVSeparator})
	}
	maxWidth, _ := cmd.Flags().GetInt("max-width")
	verbose, _ := cmd.Flags().GetBool("verbose")
	writers = append(writers, &report.ConsoleWriter{
		Out:      out,
		Plain:    usePlainTables(cmd, out),
		MaxWidth: maxWidth,
		Verbose:  verbose,
	})

	for _, w := range writers {
		if err := w.Write(rep); err != nil {
			return err
		}
	}
	r.logger.Info("report written",
		zap.String("workbook", filepath.Join(r.cfg.OutputDir, workbook)),
		zap.Int("compared", len(rep.Compared())),
		zap.Bool("differences", rep.HasDifferences()))

	if len(rep.Compared()) == 0 {
		return errNothingCompared
	}
	return nil
}

// usePlainTables honours --plain. On Windows terminals, Unicode box-drawing
// can render poorly, so ASCII is forced for interactive stdout there too.
func usePlainTables(cmd *cobra.Command, w io.Writer) bool {
	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		return true
	}
	return runtime.GOOS == "windows" && isTerminal(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
