// Package main is the threatlens command-line client. It runs the same
// analysis pipeline as the API server without an HTTP layer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/threatlens/internal/app"
	"github.com/kiranshivaraju/threatlens/internal/config"
	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// openApp builds the components from the environment. Tests replace it.
var openApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "threatlens",
		Short:        "Classify source code for malicious behavior",
		Long:         "Classify code snippets and GitHub repositories against the threat taxonomy and print the result as JSON.",
		SilenceUsage: true,
	}

	cmd.AddCommand(analyzeCmd())
	cmd.AddCommand(repoCmd())
	cmd.AddCommand(statsCmd())

	return cmd
}

// codeResult mirrors the code branch of POST /api/v1/analyze.
type codeResult struct {
	Analysis       string              `json:"analysis"`
	DangerousLines []models.DangerSpot `json:"dangerous_lines"`
	FullCode       []string            `json:"full_code"`
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Classify a single source file",
		Long:  "Classify the contents of a file, or standard input when the argument is \"-\".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if code == "" {
				return fmt.Errorf("%s is empty", args[0])
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				cl, err := a.Service.AnalyzeCode(ctx, code)
				if err != nil {
					return fmt.Errorf("analyzing %s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), codeResult{
					Analysis:       cl.Category.String(),
					DangerousLines: cl.DangerSpots,
					FullCode:       strings.Split(code, "\n"),
				})
			})
		},
	}
}

func repoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repo <github-url>",
		Short: "Analyze every source file of a GitHub repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Reporter.Report(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

// statsResult mirrors GET /api/v1/stats.
type statsResult struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of stored results per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				counts, err := a.Store.CountByCategory(ctx)
				if err != nil {
					return fmt.Errorf("counting records: %w", err)
				}
				out := statsResult{Labels: []string{}, Values: []int{}}
				for _, c := range counts {
					out.Labels = append(out.Labels, c.Category)
					out.Values = append(out.Values, c.Count)
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func readInput(stdin io.Reader, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
