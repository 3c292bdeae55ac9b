// File: cmd/entities.go
package cmd

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nappa85/ingress-intel-go/internal/observability"
	"github.com/nappa85/ingress-intel-go/pkg/intel"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities <latitude> <longitude>",
	Short: "Fetch the game entities in the tiles around a point.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return err
		}
		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return err
		}

		client, err := newIntelClient()
		if err != nil {
			return err
		}

		resp, err := client.GetEntities(cmd.Context(), lat, lng)
		if err != nil {
			return err
		}

		var portals []portalSummary
		for _, tile := range resp.Result.Map {
			if tile.Failed() {
				continue
			}
			portals = append(portals, summarize(tile.Entities)...)
		}
		return printPortals(portals)
	},
}

// portalSummary is the flattened shape the CLI prints per portal entity.
type portalSummary struct {
	GUID      string  `json:"guid"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func summarize(entities []intel.Entity) []portalSummary {
	var portals []portalSummary
	for i := range entities {
		e := &entities[i]
		if !e.IsPortal() {
			continue
		}
		lat, _ := e.Latitude()
		lng, _ := e.Longitude()
		portals = append(portals, portalSummary{
			GUID:      e.GUID,
			Name:      e.Name(),
			Latitude:  lat,
			Longitude: lng,
		})
	}
	return portals
}

func printPortals(portals []portalSummary) error {
	observability.GetLogger().Info("Entities fetched.", zap.Int("portals", len(portals)))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(portals)
}

func init() {
	entitiesCmd.SilenceUsage = true
}
