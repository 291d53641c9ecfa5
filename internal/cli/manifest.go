package cli

import (
	"github.com/spf13/cobra"

	apihttp "czstreams/internal/api/http"
	"czstreams/internal/app"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print the addon manifest",
	Long:  `Print the manifest the server would serve, including the config fields of every active resolver.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger := environment(cmd)
		server := apihttp.NewServer(app.BuildRegistry(cfg, logger), nil, nil, apihttp.WithLogger(logger))
		return printJSON(cmd.OutOrStdout(), server.Manifest())
	},
}
