package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/hens-workflow/internal/weather"
)

func newLocationsCmd() *cobra.Command {
	var cyclones bool
	cmd := &cobra.Command{
		Use:   "locations [name]",
		Short: "List forecast locations, cyclone presets and the latest cycle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				loc, ok := weather.LookupLocation(args[0])
				if !ok {
					a.logger.Sugar().Warnf("unknown location %q, using %s", args[0], loc.Name)
				}
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", loc.Name, loc.Lat, loc.Lon)
				return nil
			}

			if cyclones {
				fmt.Fprintln(w, "NAME\tSTART\tLOCATION")
				for _, c := range weather.Cyclones() {
					fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Start.Format(time.RFC3339), c.Location)
				}
				return nil
			}

			fmt.Fprintln(w, "NAME\tLAT\tLON")
			for _, name := range weather.Locations() {
				loc, _ := weather.LookupLocation(name)
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", loc.Name, loc.Lat, loc.Lon)
			}
			fmt.Fprintf(w, "\nlatest cycle\t%s\n", weather.RecentCycle(time.Now()).Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().BoolVar(&cyclones, "cyclones", false, "list tropical cyclone presets")
	return cmd
}
