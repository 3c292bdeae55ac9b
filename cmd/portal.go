// File: cmd/portal.go
package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nappa85/ingress-intel-go/internal/observability"
)

var portalCmd = &cobra.Command{
	Use:   "portal <guid>",
	Short: "Fetch the detail tuple for one portal.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		client, err := newIntelClient()
		if err != nil {
			return err
		}

		resp, err := client.GetPortalDetails(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		portal := resp.Result
		logger.Info("Portal fetched.",
			zap.String("name", portal.Name()),
			zap.Float64("latitude", portal.Latitude()),
			zap.Float64("longitude", portal.Longitude()))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"name":      portal.Name(),
			"team":      portal.Team(),
			"level":     portal.Level(),
			"image":     portal.ImageURL(),
			"latitude":  portal.Latitude(),
			"longitude": portal.Longitude(),
		})
	},
}

func init() {
	portalCmd.SilenceUsage = true
}
