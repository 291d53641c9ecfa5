package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"czstreams/internal/app"
	"czstreams/internal/domain"
)

var (
	searchResolver string
	searchTerm     string
	searchResolve  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query a single resolver",
	Long: `Send one search term to one resolver and print its raw hits. With --resolve the
first hit is resolved as well, which exercises login and link extraction.`,
	Example: `  czstreams search --resolver HellspyTo --term "Pelíšky 1999" --resolve`,
	RunE:    runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchResolver, "resolver", "r", "", "Resolver name, e.g. PrehrajTo")
	searchCmd.Flags().StringVar(&searchTerm, "term", "", "Search term")
	searchCmd.Flags().BoolVar(&searchResolve, "resolve", false, "Resolve the first hit")
	_ = searchCmd.MarkFlagRequired("resolver")
	_ = searchCmd.MarkFlagRequired("term")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	resolverCfg, err := parseConfigPairs(configPairs)
	if err != nil {
		return err
	}
	cfg, logger := environment(cmd)
	ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.StreamTimeout)
	defer cancel()

	item, err := app.BuildRegistry(cfg, logger).Lookup(searchResolver)
	if err != nil {
		return err
	}
	valid, err := item.ValidateConfig(ctx, resolverCfg)
	if err != nil {
		return fmt.Errorf("validate %s: %w", item.Name(), err)
	}
	if !valid {
		logger.Warn("resolver rejects the configuration, searching anyway", "resolver", item.Name())
	}

	hits, err := item.Search(ctx, strings.TrimSpace(searchTerm), resolverCfg)
	if err != nil {
		return fmt.Errorf("search %s: %w", item.Name(), err)
	}
	result := map[string]any{
		"resolver": item.Name(),
		"term":     searchTerm,
		"hits":     hits,
	}
	if searchResolve && len(hits) > 0 {
		details, err := item.Resolve(ctx, hits[0].ResolverID, resolverCfg)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", hits[0].ResolverID, err)
		}
		result["resolved"] = details
	}
	if hits == nil {
		result["hits"] = []domain.SearchHit{}
	}
	return printJSON(cmd.OutOrStdout(), result)
}
