package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/retrieval"
)

var (
	queryPathPrefixes []string
	queryLanguages    []string
	queryKinds        []string
	queryBudget       int
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the context index",
	Long: `query runs the hybrid retrieval pipeline over the context
index and prints the winning snippets within the token budget.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryPathPrefixes, "path", nil,
		"restrict to paths under these prefixes")
	queryCmd.Flags().StringSliceVar(&queryLanguages, "language", nil,
		"restrict to these languages")
	queryCmd.Flags().StringSliceVar(&queryKinds, "kind", nil,
		"restrict to these file kinds (code, docs, config)")
	queryCmd.Flags().IntVar(&queryBudget, "budget", 2000,
		"token budget for returned snippets")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	s, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	eng := buildRetrieval(cfg, s, logger)
	snippets, err := eng.Retrieve(cmd.Context(), retrieval.Query{
		Text: strings.Join(args, " "),
		Scope: core.ContextScope{
			PathPrefixes: queryPathPrefixes,
			Languages:    queryLanguages,
			Kinds:        queryKinds,
		},
		Budget: core.TokenBudget{AvailableForSnippets: queryBudget},
	})
	if err != nil {
		return err
	}

	if len(snippets) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no results")
		return nil
	}
	out := cmd.OutOrStdout()
	for i, sn := range snippets {
		fmt.Fprintf(out, "%d. %s (score %.3f)\n", i+1, sn.Path, sn.Score)
		for _, line := range strings.Split(strings.TrimRight(sn.Content, "\n"), "\n") {
			fmt.Fprintf(out, "   %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}
