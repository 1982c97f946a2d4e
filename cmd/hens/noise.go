package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/i474232898/hens-workflow/internal/common"
	"github.com/i474232898/hens-workflow/internal/noise"
)

func newNoiseCmd() *cobra.Command {
	var (
		skillPath     string
		leadTime      int
		amplification float64
		perturbed     []string
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "noise",
		Short: "Print the per-variable noise amplitude vector",
		Long: `Builds the noise amplitude vector for the configured model variables:
the deterministic skill of each perturbed variable at the lead time, zero for
the others, scaled by the amplification factor.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("skill") {
				skillPath = a.cfg.SkillPath
			}
			if !flags.Changed("lead-time") {
				leadTime = a.cfg.LeadTime
			}
			if !flags.Changed("amplification") {
				amplification = a.cfg.NoiseAmplification
			}
			set := flags.Changed("perturbed")
			if !set {
				perturbed, set = a.cfg.PerturbedVariables, a.cfg.PerturbedSet
			}

			if skillPath == "" {
				return fmt.Errorf("%w: no skill table given (--skill or HENS_SKILL_PATH)", common.ErrConfiguration)
			}
			table, err := noise.LoadSkillTable(skillPath)
			if err != nil {
				return err
			}

			opts := append(noise.PerturbedFromList(perturbed, set), noise.WithAmplification(amplification))
			vec, err := noise.Build(a.cfg.ModelVariables, table, leadTime, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(vec)
			}
			fmt.Fprintf(out, "shape %v\n", vec.Shape())
			for i, v := range vec.Values() {
				fmt.Fprintf(out, "%-8s %g\n", a.cfg.ModelVariables[i], v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&skillPath, "skill", "", "skill table (.csv, .yaml or .json)")
	cmd.Flags().IntVar(&leadTime, "lead-time", 48, "lead time in hours")
	cmd.Flags().Float64Var(&amplification, "amplification", 1, "noise amplification factor")
	cmd.Flags().StringSliceVar(&perturbed, "perturbed", nil, "variables to perturb; --perturbed= perturbs none (default all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
