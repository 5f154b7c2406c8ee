package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/grade-sanchalaak/internal/bootstrap"
	"github.com/noah-isme/grade-sanchalaak/internal/config"
	"github.com/noah-isme/grade-sanchalaak/internal/evaluation"
	"github.com/noah-isme/grade-sanchalaak/internal/logging"
	"github.com/noah-isme/grade-sanchalaak/pkg/fileparser"
)

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "gradectl",
		Short:         "Keyword coverage grading from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline activity to stderr")
	cmd.AddCommand(
		buildKeywordsCmd(opts),
		buildEvaluateCmd(opts),
	)
	return cmd
}

func buildKeywordsCmd(root *rootOptions) *cobra.Command {
	var (
		problemPath string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Extract reference keywords from a problem statement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, _, err := loadPipeline(root)
			if err != nil {
				return err
			}
			problem, err := readProblem(problemPath)
			if err != nil {
				return err
			}

			keywords, err := pipeline.Extractor.Extract(cmd.Context(), problem)
			if err != nil {
				return errors.New(evaluation.UserMessage(err))
			}
			return printKeywords(cmd.OutOrStdout(), keywords, asJSON)
		},
	}
	cmd.Flags().StringVarP(&problemPath, "problem", "p", "", "File holding the problem statement (- for stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON array instead of one keyword per line")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

type evaluateOptions struct {
	problemPath  string
	keywordsPath string
	outputPath   string
	format       string
	maxPoints    float64
}

func buildEvaluateCmd(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate [files...]",
		Short: "Evaluate submission files against a problem statement",
		Long: `Evaluate parses every file (txt, pdf, docx, xlsx), grades it against the
reference keywords and prints a report. Keywords are extracted from the
problem statement unless --keywords names a file holding them, either as a
JSON array or one keyword per line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.problemPath, "problem", "p", "", "File holding the problem statement (- for stdin)")
	cmd.Flags().StringVarP(&opts.keywordsPath, "keywords", "k", "", "File holding reference keywords")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringVar(&opts.format, "format", "csv", "Report format (csv, json)")
	cmd.Flags().Float64Var(&opts.maxPoints, "max-points", 0, "Points available per submission (default from config)")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

func runEvaluate(cmd *cobra.Command, root *rootOptions, opts *evaluateOptions, files []string) error {
	format := strings.ToLower(opts.format)
	if format != "csv" && format != "json" {
		return fmt.Errorf("unsupported format %q", opts.format)
	}

	pipeline, logger, err := loadPipeline(root)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	problem, err := readProblem(opts.problemPath)
	if err != nil {
		return err
	}

	keywords, err := resolveKeywords(ctx, pipeline, problem, opts.keywordsPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Using %d reference keywords\n", keywords.Len())

	items, parseFailures := parseSubmissions(pipeline, files, logger)
	evaluated := pipeline.Runner.Run(ctx, evaluation.BatchRequest{
		Keywords:  keywords,
		MaxPoints: opts.maxPoints,
		Items:     items,
	}, func(outcome evaluation.Outcome) {
		if outcome.Succeeded() {
			fmt.Fprintf(stderr, "  %-40s %6.2f / %.2f\n", outcome.Label, outcome.Result.TotalScore, outcome.Result.MaxScore)
			return
		}
		fmt.Fprintf(stderr, "  %-40s failed: %s\n", outcome.Label, evaluation.UserMessage(outcome.Err))
	})
	results := inArgumentOrder(len(files), evaluated.Outcomes(), parseFailures)
	if err := ctx.Err(); err != nil {
		return err
	}

	report := results.Report()
	printSummary(stderr, report.Summary)

	out := cmd.OutOrStdout()
	if opts.outputPath != "" {
		file, err := os.Create(opts.outputPath)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	return report.WriteCSV(out)
}

func loadPipeline(root *rootOptions) (*bootstrap.Pipeline, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	logger := zerolog.Nop()
	if root.verbose {
		logger, _ = logging.New(logging.Options{Level: "debug", Console: true})
	}

	pipeline, err := bootstrap.NewPipeline(cfg, logger)
	if err != nil {
		return nil, logger, err
	}
	return pipeline, logger, nil
}

func readProblem(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read problem statement: %w", err)
	}

	problem := strings.TrimSpace(string(data))
	if problem == "" {
		return "", evaluation.ErrEmptyProblemStatement
	}
	return problem, nil
}

func resolveKeywords(ctx context.Context, pipeline *bootstrap.Pipeline, problem, path string) (evaluation.KeywordSet, error) {
	if path == "" {
		keywords, err := pipeline.Extractor.Extract(ctx, problem)
		if err != nil {
			return evaluation.KeywordSet{}, errors.New(evaluation.UserMessage(err))
		}
		return keywords, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return evaluation.KeywordSet{}, fmt.Errorf("read keywords: %w", err)
	}
	return parseKeywordFile(string(data))
}

// parseKeywordFile accepts a JSON array or one keyword per line.
func parseKeywordFile(content string) (evaluation.KeywordSet, error) {
	if values, err := evaluation.ParseKeywords(content); err == nil {
		if set := evaluation.NewKeywordSet(values); set.Len() > 0 {
			return set, nil
		}
	}

	var values []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		values = append(values, line)
	}
	if err := scanner.Err(); err != nil {
		return evaluation.KeywordSet{}, err
	}

	set := evaluation.NewKeywordSet(values)
	if set.Len() == 0 {
		return evaluation.KeywordSet{}, errors.New("keyword file holds no keywords")
	}
	return set, nil
}

// parseSubmissions numbers files from 1 in argument order. Files that cannot
// be read or parsed come back as failed outcomes.
func parseSubmissions(pipeline *bootstrap.Pipeline, files []string, logger zerolog.Logger) ([]evaluation.BatchItem, []evaluation.Outcome) {
	items := make([]evaluation.BatchItem, 0, len(files))
	var failures []evaluation.Outcome

	for i, path := range files {
		id := uint(i + 1)
		label := filepath.Base(path)

		data, err := os.ReadFile(path)
		if err == nil {
			var doc fileparser.Document
			doc, err = pipeline.Parser.Parse(label, data)
			if err == nil {
				logger.Debug().Str("file", label).Str("format", string(doc.Format)).Msg("submission parsed")
				items = append(items, evaluation.BatchItem{SubmissionID: id, Label: label, Text: doc.Text})
				continue
			}
		}
		failures = append(failures, evaluation.Outcome{SubmissionID: id, Label: label, Err: err})
	}
	return items, failures
}

// inArgumentOrder merges evaluated and unreadable files into one result set
// ordered like the command line.
func inArgumentOrder(count int, groups ...[]evaluation.Outcome) *evaluation.ResultSet {
	numbered := make([]evaluation.BatchItem, count)
	for i := range numbered {
		numbered[i].SubmissionID = uint(i + 1)
	}
	results := evaluation.NewResultSet(numbered)
	for _, group := range groups {
		for _, outcome := range group {
			results.Append(outcome)
		}
	}
	return results
}

func printKeywords(w io.Writer, keywords evaluation.KeywordSet, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(keywords.Items())
	}
	for _, keyword := range keywords.Items() {
		if _, err := fmt.Fprintln(w, keyword); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, summary evaluation.Summary) {
	fmt.Fprintf(w, "\nEvaluated %d of %d submissions (%d failed)\n", summary.Count, summary.Total, summary.FailedCount)
	if summary.Count == 0 {
		return
	}
	fmt.Fprintf(w, "Average score %.2f (%.2f%%), average keyword coverage %.2f%%\n",
		summary.AverageScore, summary.AveragePercentage, summary.AverageCoverage)
	fmt.Fprintf(w, "Grades A:%d B:%d C:%d D:%d F:%d, low effort warnings: %d\n",
		summary.GradeDistribution.A, summary.GradeDistribution.B, summary.GradeDistribution.C,
		summary.GradeDistribution.D, summary.GradeDistribution.F, summary.LowEffortCount)
}
