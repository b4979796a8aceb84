package cmd

import (
	"fmt"

	"github.com/KaramelBytes/agentcompare/internal/insight"
	"github.com/KaramelBytes/agentcompare/internal/render"
	"github.com/KaramelBytes/agentcompare/internal/utils"
	"github.com/spf13/cobra"
)

var (
	aggInput      inputFlags
	aggLocale     string
	aggFormat     string
	aggOutputPath string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Print the per-agent comparison without calling a model",
	Example: `  agentcompare aggregate --old q1.csv --new q2.csv
  agentcompare aggregate --old q1.csv --new q2.csv --format table
  agentcompare aggregate --old q1.csv --new q2.csv --agents Alice --output alice.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		localeFlag := aggLocale
		if localeFlag == "" && cfg != nil {
			localeFlag = cfg.Locale
		}
		locale, err := insight.ParseLocale(localeFlag)
		if err != nil {
			return err
		}
		st, err := aggInput.loadSession(cmd)
		if err != nil {
			return err
		}
		entries := st.Comparison(aggInput.metricsOptions(cmd))

		var out []byte
		switch aggFormat {
		case "", "json":
			out, err = insight.ComparisonJSON(entries, locale)
			if err != nil {
				return err
			}
		case "table":
			out = []byte(render.Table(entries))
		default:
			return fmt.Errorf("unsupported --format: %s (use json|table)", aggFormat)
		}
		if aggOutputPath != "" {
			if err := utils.SafeWriteFile(aggOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			log.WithField("path", aggOutputPath).Info("saved comparison")
			return nil
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggInput.register(aggregateCmd, true)
	aggregateCmd.Flags().StringVar(&aggLocale, "locale", "", "period labels: nl|en (default from config, nl)")
	aggregateCmd.Flags().StringVar(&aggFormat, "format", "json", "output format: json|table")
	aggregateCmd.Flags().StringVar(&aggOutputPath, "output", "", "write to this file instead of stdout")
}
