package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spigell/hh-matcher/internal/jobs"
	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/utils"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	PromptBack          = "back"
	outputJSON          = "json"
	outputYAML          = "yaml"
	postingPreviewLimit = 600
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank job postings against a resume",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	addResumeFlags(matchCmd)
	matchCmd.Flags().StringArrayP("filter", "f", nil, "filter as key=value (location, minSalary, maxSalary, experience, categoryId)")
	matchCmd.Flags().StringP("output", "o", outputJSON, "output format: json or yaml")
	matchCmd.Flags().BoolP("interactive", "i", false, "choose a posting from the result to see its details")
}

func addResumeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("resume", "r", "", "file with the resume text")
	cmd.Flags().String("owner", "", "resume owner id used in logs")
	_ = cmd.MarkFlagRequired("resume")
}

// setup builds the logger, config and runtime shared by commands.
func setup(ctx context.Context) (*zap.Logger, *Config, *runtime) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), zap.String("app", app))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the hh-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	rt, err := buildRuntime(ctx, config, logger)
	if err != nil {
		logger.Fatal("building runtime", zap.Error(err))
	}

	return logger, config, rt
}

func readResume(cmd *cobra.Command) (*matching.Resume, error) {
	path, _ := cmd.Flags().GetString("resume")
	owner, _ := cmd.Flags().GetString("owner")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resume: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("resume file %s is empty", path)
	}
	if owner == "" {
		owner = path
	}

	return matching.NewResume(owner, text), nil
}

func runMatch(cmd *cobra.Command) {
	ctx := context.Background()

	logger, _, rt := setup(ctx)
	defer rt.Close()

	format, _ := cmd.Flags().GetString("output")
	if format != outputJSON && format != outputYAML {
		logger.Fatal("unsupported output format", zap.String("output", format))
	}

	resume, err := readResume(cmd)
	if err != nil {
		logger.Fatal("loading resume", zap.Error(err))
	}

	pairs, _ := cmd.Flags().GetStringArray("filter")
	filters, err := jobs.ParseFilterPairs(pairs)
	if err != nil {
		logger.Fatal("parsing filters", zap.Error(err))
	}

	result := rt.matcher.FindMatches(ctx, resume, filters)

	logger.Info("matching finished",
		zap.String("code", string(result.Code)),
		zap.String("message", result.Message),
		zap.Int("count", len(result.Candidates)),
	)

	if err := render(cmd.OutOrStdout(), format, result); err != nil {
		logger.Fatal("printing result", zap.Error(err))
	}

	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive || len(result.Candidates) == 0 {
		return
	}

	if err := browse(ctx, cmd.OutOrStdout(), rt, resume, result, logger); err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// browse lets the user pick postings from the result and prints their score
// and text until "back" is chosen.
func browse(ctx context.Context, w io.Writer, rt *runtime, resume *matching.Resume, result *matching.Result, logger *zap.Logger) error {
	items := make([]string, 0, len(result.Candidates)+1)
	for _, c := range result.Candidates {
		items = append(items, candidateLabel(ctx, rt.jobs, c))
	}

	postingPrompt := promptui.Select{
		Label: "Choose a job posting and press ENTER",
		Items: append(items, PromptBack),
	}

	for {
		_, selected, err := postingPrompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}

		if selected == PromptBack {
			return nil
		}

		id := strings.Split(selected, " ")[0]
		posting, err := rt.jobs.Get(ctx, id)
		if err != nil {
			logger.Warn("loading job posting", zap.String("job_posting_id", id), zap.Error(err))
			continue
		}

		score := rt.matcher.ScoreOne(ctx, id, resume)
		if score == nil {
			logger.Warn("job posting could not be scored", zap.String("job_posting_id", id))
			continue
		}

		fmt.Fprintf(w, "\n%s (cosine %.3f, %d%%)\n%s\n\n",
			id, score.CosineSimilarity, score.MatchScorePercent,
			utils.TruncateForLog(jobs.Assemble(posting).Text, postingPreviewLimit),
		)
	}
}

func candidateLabel(ctx context.Context, repo jobs.Repository, c matching.CandidateSummary) string {
	label := fmt.Sprintf("%s %d%%", c.JobPostingID, c.MatchScorePercent)

	posting, err := repo.Get(ctx, c.JobPostingID)
	if err != nil {
		return label
	}

	label = fmt.Sprintf("%s / %s", label, posting.Title)
	if posting.Employer.Name != "" {
		label = fmt.Sprintf("%s / %s", label, posting.Employer.Name)
	}
	return label
}
