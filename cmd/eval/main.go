package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jdgilhuly/go_struct_eval/pkg/config"
	"github.com/jdgilhuly/go_struct_eval/pkg/diff"
	"github.com/jdgilhuly/go_struct_eval/pkg/judge"
	"github.com/jdgilhuly/go_struct_eval/pkg/logging"
	"github.com/jdgilhuly/go_struct_eval/pkg/report"
	"github.com/jdgilhuly/go_struct_eval/pkg/result"
	"github.com/jdgilhuly/go_struct_eval/pkg/review"
	"github.com/jdgilhuly/go_struct_eval/pkg/runner"
	"github.com/jdgilhuly/go_struct_eval/pkg/structured"
	"github.com/jdgilhuly/go_struct_eval/pkg/suite"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eval",
	Short: "Structured output eval",
	Long: `Score structured (JSON) model outputs against ground-truth references.

Each comparison yields an overall similarity in [0, 1], a score per
top-level field, and a diagnostic observation. Suites of recorded outputs
are scored with composable judges and saved for comparison with 'eval diff'.

Use 'eval init' to scaffold a project, then 'eval run' to score a suite.`,
}

// --- score command ---

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one output against its ground truth",
	Long: `Extract JSON from an output and compare it with a ground-truth JSON.

Values are given inline or as @path to read a file. The observation is
printed as JSON followed by the per-field scores.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputArg, _ := cmd.Flags().GetString("output")
		expectedArg, _ := cmd.Flags().GetString("expected")
		ordered, _ := cmd.Flags().GetBool("ordered")
		jsonOnly, _ := cmd.Flags().GetBool("json")

		output, err := readArg(outputArg)
		if err != nil {
			return fmt.Errorf("reading output: %w", err)
		}
		expected, err := readArg(expectedArg)
		if err != nil {
			return fmt.Errorf("reading expected: %w", err)
		}

		obs := structured.Compare(output, expected, structured.Options{OrderedTree: ordered})
		return printObservation(cmd.OutOrStdout(), obs, jsonOnly)
	},
}

func printObservation(w io.Writer, obs *structured.Observation, jsonOnly bool) error {
	fmt.Fprintln(w, obs.String())
	if jsonOnly {
		return nil
	}
	fmt.Fprintf(w, "\nscore: %.4f\n", obs.Score)
	if len(obs.FieldScores) > 0 {
		fmt.Fprintln(w, "fields:")
		report.PrintFieldScores(w, obs.FieldScores, "  ", false)
	}
	return nil
}

// readArg returns the argument itself, or the contents of the file it names
// when it starts with '@'.
func readArg(arg string) (string, error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an eval suite",
	Long: `Score every case of an eval suite with its judges.

Results are saved to a JSON file for later comparison with 'eval diff'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if c, _ := cmd.Flags().GetInt("concurrency"); c > 0 {
			cfg.Concurrency = c
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger := logging.Init(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
		logger.Debug("config loaded", "path", cfgPath,
			"concurrency", cfg.Concurrency, "timeout", cfg.Timeout, "output_dir", cfg.OutputDir)

		suitePath, _ := cmd.Flags().GetString("suite")
		if suitePath == "" {
			return fmt.Errorf("--suite is required")
		}
		s, err := suite.Load(suitePath)
		if err != nil {
			return fmt.Errorf("loading suite: %w", err)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("suite validation failed: %w", err)
		}
		tags, _ := cmd.Flags().GetStringSlice("tag")
		s = s.FilterByTag(tags)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		r := runner.New(runner.Config{
			Concurrency:   cfg.Concurrency,
			Timeout:       cfg.Timeout,
			PassThreshold: cfg.PassThreshold,
			Ordered:       !cfg.Structured.IgnoreOrder,
			Truncate:      cfg.Structured.Truncate,
			Logger:        logger,
		})
		rr, runErr := r.Run(ctx, s, nil)
		if rr == nil {
			return runErr
		}

		summary := result.FromRunResult(rr)
		outPath, _ := cmd.Flags().GetString("output")
		if outPath == "" {
			outPath = result.DefaultPath(cfg.OutputDir, s.Name, rr.StartTime)
		}
		if err := summary.Save(outPath); err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		noColor, _ := cmd.Flags().GetBool("no-color")
		if verbose {
			report.PrintVerbose(cmd.OutOrStdout(), summary, !noColor)
		} else {
			report.PrintSummaryTable(cmd.OutOrStdout(), summary, !noColor)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Results saved to %s\n", outPath)
		return runErr
	},
}

// --- diff command ---

var diffCmd = &cobra.Command{
	Use:   "diff <run-a.json> <run-b.json>",
	Short: "Compare two run results",
	Long: `Compare results from two eval runs side-by-side.

Shows score regressions, improvements, and unchanged cases, and which
fields changed within each case.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := result.LoadSummary(args[0])
		if err != nil {
			return err
		}
		b, err := result.LoadSummary(args[1])
		if err != nil {
			return err
		}

		threshold, _ := cmd.Flags().GetFloat64("threshold")
		only, _ := cmd.Flags().GetStringSlice("only")
		var cats []diff.Category
		for _, c := range only {
			cats = append(cats, diff.Category(c))
		}
		dr := diff.Compare(a, b, threshold).Filter(cats)

		format, _ := cmd.Flags().GetString("format")
		w := cmd.OutOrStdout()
		switch format {
		case "table":
			dr.PrintTable(w)
		case "markdown":
			dr.PrintMarkdown(w)
		case "json":
			data, err := dr.JSON()
			if err != nil {
				return fmt.Errorf("marshaling diff: %w", err)
			}
			fmt.Fprintln(w, string(data))
		default:
			return fmt.Errorf("unknown format %q (want table, json or markdown)", format)
		}
		return nil
	},
}

// --- review command ---

var reviewCmd = &cobra.Command{
	Use:   "review <run.json>",
	Short: "Grade cases from a run by hand",
	Long: `Interactively grade cases from a saved run.

By default only cases with a field that did not fully match are shown.
Grades overwrite the case score and the run file is saved in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := result.LoadSummary(args[0])
		if err != nil {
			return err
		}

		filterStr, _ := cmd.Flags().GetString("filter")
		r := &review.Reviewer{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
		n, err := r.Review(summary, review.ParseFilter(filterStr))
		if err != nil {
			return fmt.Errorf("reading grades: %w", err)
		}
		if n == 0 {
			return nil
		}
		if err := summary.Save(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nGraded %d cases; saved %s\n", n, args[0])
		return nil
	},
}

// --- list command ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available resources",
	Long:  `List available suites or judge types.`,
}

var listSuitesCmd = &cobra.Command{
	Use:   "suites",
	Short: "List available eval suites",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		suiteDir := filepath.Join(dir, "suites")

		suites, err := suite.LoadDir(suiteDir)
		if err != nil {
			return fmt.Errorf("loading suites from %s: %w", suiteDir, err)
		}

		w := cmd.OutOrStdout()
		if len(suites) == 0 {
			fmt.Fprintln(w, "No eval suites found.")
			return nil
		}

		for _, s := range suites {
			desc := s.Description
			if desc == "" {
				desc = "(no description)"
			}
			fmt.Fprintf(w, "  %-20s %-40s (%d cases)\n", s.Name, desc, len(s.Cases))
		}
		return nil
	},
}

var listJudgesCmd = &cobra.Command{
	Use:   "judges",
	Short: "List registered judge types",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, t := range judge.Types() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", t)
		}
		return nil
	},
}

// --- validate command ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config and suite files",
	Long: `Check eval configuration and suite files for errors.

Validates YAML syntax, required fields, and judge definitions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		suitePath, _ := cmd.Flags().GetString("suite")
		if suitePath != "" {
			s, err := suite.Load(suitePath)
			if err != nil {
				return fmt.Errorf("loading suite: %w", err)
			}
			if err := s.Validate(); err != nil {
				return fmt.Errorf("suite validation failed: %w", err)
			}
			fmt.Fprintf(w, "Suite %q is valid (%d cases).\n", s.Name, len(s.Cases))
		}

		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
		fmt.Fprintf(w, "Config %q is valid.\n", cfgPath)

		return nil
	},
}

// --- init command ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new eval project",
	Long: `Scaffold a new eval project with example configuration, a suite,
and a results directory.

Creates the following structure:
  eval.yaml          - Main configuration file
  suites/            - Eval suite directory
  results/           - Run result output directory`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	w := cmd.OutOrStdout()

	for _, d := range []string{"suites", "results"} {
		path := filepath.Join(dir, d)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
		fmt.Fprintf(w, "  created %s/\n", path)
	}

	if err := writeExampleConfig(w, filepath.Join(dir, "eval.yaml")); err != nil {
		return err
	}
	if err := writeExampleSuite(w, filepath.Join(dir, "suites", "example.yaml")); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nEval project initialized. Run 'eval validate' to check your config.")
	return nil
}

func writeYAML(w io.Writer, path string, data any) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  skipped %s (already exists)\n", path)
		return nil
	}

	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(w, "  created %s\n", path)
	return nil
}

func writeExampleConfig(w io.Writer, path string) error {
	def := config.Default()
	data := map[string]any{
		"concurrency":    def.Concurrency,
		"timeout":        def.Timeout.String(),
		"output_dir":     def.OutputDir,
		"pass_threshold": def.PassThreshold,
		"log_level":      def.LogLevel,
		"log_format":     def.LogFormat,
		"structured": map[string]any{
			"ignore_order": def.Structured.IgnoreOrder,
			"truncate":     def.Structured.Truncate,
		},
	}
	return writeYAML(w, path, data)
}

func writeExampleSuite(w io.Writer, path string) error {
	data := map[string]any{
		"name":        "example",
		"description": "An example structured output suite",
		"default_judges": []map[string]any{
			{
				"type":    "structured",
				"weight":  1.0,
				"comment": "Field-level similarity to the ground truth",
			},
		},
		"cases": []map[string]any{
			{
				"name":   "extract-person",
				"query":  "Extract the person mentioned in the text as JSON.",
				"output": "Here is the data:\n```json\n{\"name\": \"Ada Lovelace\", \"born\": 1815}\n```",
				"output_true": map[string]any{
					"name": "Ada Lovelace",
					"born": 1815,
				},
				"tags": []string{"person"},
			},
		},
	}
	return writeYAML(w, path, data)
}

func init() {
	// score command flags
	scoreCmd.Flags().String("output", "", "Model output text, or @file")
	scoreCmd.Flags().String("expected", "", "Ground-truth JSON, or @file")
	scoreCmd.Flags().Bool("ordered", false, "Compare arrays positionally in the whole-tree diff")
	scoreCmd.Flags().Bool("json", false, "Print only the observation JSON")
	_ = scoreCmd.MarkFlagRequired("output")
	_ = scoreCmd.MarkFlagRequired("expected")

	// run command flags
	runCmd.Flags().StringP("suite", "s", "", "Path to eval suite YAML file")
	runCmd.Flags().StringP("config", "c", "eval.yaml", "Path to config file")
	runCmd.Flags().IntP("concurrency", "j", 0, "Max concurrent eval cases (0 = use config default)")
	runCmd.Flags().StringSliceP("tag", "t", nil, "Only run cases with one of these tags")
	runCmd.Flags().StringP("output", "o", "", "Output file path (default: <output_dir>/<timestamp>-<suite>.json)")
	runCmd.Flags().BoolP("verbose", "v", false, "Print per-case details")
	runCmd.Flags().Bool("no-color", false, "Disable colored output")

	// diff command flags
	diffCmd.Flags().Float64("threshold", 0.0, "Minimum score change to highlight")
	diffCmd.Flags().String("format", "table", "Output format: table, json, markdown")
	diffCmd.Flags().StringSlice("only", nil, "Only show these categories (improved, regressed, unchanged, new, removed)")

	// review command flags
	reviewCmd.Flags().String("filter", "partial", "Cases to review: partial, fail, all")

	// list command flags
	listCmd.PersistentFlags().String("dir", ".", "Base directory to search")
	listCmd.AddCommand(listSuitesCmd)
	listCmd.AddCommand(listJudgesCmd)

	// validate command flags
	validateCmd.Flags().String("suite", "", "Path to suite file to validate")
	validateCmd.Flags().String("config", "eval.yaml", "Path to config file to validate")

	// init command flags
	initCmd.Flags().String("dir", ".", "Directory to initialize")

	// register all subcommands
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
}
