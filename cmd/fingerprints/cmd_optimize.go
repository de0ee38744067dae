package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utndatasystems/string-fingerprints/config"
	"github.com/utndatasystems/string-fingerprints/internal/engine"
	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/persistence"
	"github.com/utndatasystems/string-fingerprints/model"
)

const (
	trailFile  = "trail.json"
	reportFile = "report.json"
)

func loadRunConfig(path string) (config.RunConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return cfg, errors.NewValidationError("config", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func (c *cli) newOptimizeCmd() *cobra.Command {
	var (
		configPath string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search a partition and write its checkpoint trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(configPath)
			if err != nil {
				return err
			}
			prep, err := engine.Prepare(cfg)
			if err != nil {
				return err
			}
			c.logger.Info("Corpora loaded",
				"words", len(prep.Data.TrainWords),
				"patterns", len(prep.Data.TrainPatterns),
				"letters", prep.Alphabet.Len(),
				"dropped", prep.Dropped)

			opt, err := engine.Optimize(cmd.Context(), prep, cfg, c.logger)
			if err != nil {
				return err
			}
			printSolver(cmd.OutOrStdout(), opt.Solver, opt.Trail)

			var entries []model.Entry
			if cfg.Evaluation.Any() {
				entries, err = engine.Evaluate(cmd.Context(), prep, opt.Trail, cfg.Evaluation, cfg.Model.NumBins, c.logger)
				if err != nil {
					return err
				}
				printEntries(cmd.OutOrStdout(), entries)
			}

			if outDir == "" {
				return nil
			}
			if err := os.MkdirAll(outDir, 0o750); err != nil {
				return err
			}
			if err := persistence.SaveJSON(filepath.Join(outDir, trailFile), opt.Trail); err != nil {
				return fmt.Errorf("writing trail: %w", err)
			}
			if entries != nil {
				if err := persistence.SaveJSON(filepath.Join(outDir, reportFile), entries); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
			}
			c.logger.Info("Results written", "dir", outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Run configuration (YAML)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for trail.json and report.json")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func (c *cli) newEvaluateCmd() *cobra.Command {
	var (
		configPath string
		trailPath  string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score every checkpoint of a trail on the configured splits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(configPath)
			if err != nil {
				return err
			}
			var trail model.Trail
			if err := persistence.LoadJSON(trailPath, &trail); err != nil {
				return fmt.Errorf("reading trail %s: %w", trailPath, err)
			}
			prep, err := engine.Prepare(cfg)
			if err != nil {
				return err
			}
			entries, err := engine.Evaluate(cmd.Context(), prep, trail, cfg.Evaluation, cfg.Model.NumBins, c.logger)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries)

			if outPath != "" {
				return persistence.SaveJSON(outPath, entries)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Run configuration (YAML) the trail was produced with")
	cmd.Flags().StringVarP(&trailPath, "trail", "t", "", "Trail written by optimize")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "File for the JSON report")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("trail")
	return cmd
}

func printSolver(w io.Writer, s model.SolverSummary, trail model.Trail) {
	fmt.Fprintf(w, "backend=%s status=%s objective=%g bound=%g gap=%s checkpoints=%d runtime=%s\n",
		s.Backend, s.Status, s.Objective, s.Bound, s.Gap, len(trail.Checkpoints), s.Runtime)
	if best, ok := trail.Under(-1); ok && best.Partition != nil {
		fmt.Fprintf(w, "best=%s\n", best.Partition)
	}
}

func printEntries(w io.Writer, entries []model.Entry) {
	for _, e := range entries {
		if e.Skipped {
			fmt.Fprintf(w, "#%d t=%.3fs skipped: %s\n", e.Index, e.Timestamp, e.Reason)
			continue
		}
		fmt.Fprintf(w, "#%d t=%.3fs objective=%g", e.Index, e.Timestamp, e.Objective)
		for _, split := range model.Splits {
			if r, ok := e.Reports[split]; ok {
				fmt.Fprintf(w, " %s=%s", split, r.Ratio)
			}
		}
		fmt.Fprintln(w)
	}
}
