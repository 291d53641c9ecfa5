package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"czstreams/internal/app"
	"czstreams/internal/domain"
)

var (
	streamsType string
	streamsID   string
)

var streamsCmd = &cobra.Command{
	Use:   "streams",
	Short: "Run the full stream pipeline for one title",
	Long: `Look up metadata for a Stremio id, query every active resolver and print the
ranked streams as JSON.

Series ids carry the episode: tt0903747:1:2.`,
	Example: `  czstreams streams --type movie --id tt0167116 -c prehrajtoUsername=me -c prehrajtoPassword=secret`,
	RunE:    runStreams,
}

func init() {
	streamsCmd.Flags().StringVarP(&streamsType, "type", "t", "movie", "Content type: movie or series")
	streamsCmd.Flags().StringVar(&streamsID, "id", "", "Stremio id, e.g. tt0167116 or tt0903747:1:2")
	_ = streamsCmd.MarkFlagRequired("id")
}

func runStreams(cmd *cobra.Command, _ []string) error {
	resolverCfg, err := parseConfigPairs(configPairs)
	if err != nil {
		return err
	}
	cfg, logger := environment(cmd)
	ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.StreamTimeout)
	defer cancel()

	registry := app.BuildRegistry(cfg, logger)
	metaService, closeMeta := app.BuildMetadata(ctx, cfg, logger)
	defer closeMeta()
	engine := app.BuildEngine(cfg, logger)

	meta, err := metaService.Lookup(ctx, domain.MediaType(strings.ToLower(streamsType)), strings.TrimSpace(streamsID))
	if err != nil {
		return err
	}
	lookup := engine.Run(ctx, meta, registry.Resolvers(), resolverCfg)
	if len(lookup.Resolvers) == 0 {
		return errors.New("no resolver accepted the configuration; pass credentials with -c key=value")
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"meta":      meta,
		"terms":     lookup.Terms,
		"resolvers": lookup.Resolvers,
		"elapsedMs": lookup.Elapsed.Milliseconds(),
		"streams":   lookup.Streams,
	})
}
