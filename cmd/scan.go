// File: cmd/scan.go
package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nappa85/ingress-intel-go/internal/config"
)

var scanCmd = &cobra.Command{
	Use:   "scan <from-lat> <from-lng> <to-lat> <to-lng>",
	Short: "Fetch every entity inside a bounding box.",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		coords := make([]float64, 4)
		for i, arg := range args {
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return err
			}
			coords[i] = v
		}

		client, err := newIntelClient()
		if err != nil {
			return err
		}

		entities, err := client.GetEntitiesInRange(cmd.Context(),
			coords[0], coords[1], coords[2], coords[3],
			config.Get().Intel.ScanWorkers)
		if err != nil {
			return err
		}

		return printPortals(summarize(entities))
	},
}

func init() {
	scanCmd.SilenceUsage = true
}
