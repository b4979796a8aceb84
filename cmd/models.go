package cmd

import (
	"fmt"
	"os"

	"github.com/KaramelBytes/agentcompare/internal/ai"
	"github.com/KaramelBytes/agentcompare/internal/utils"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show known models with context size and pricing used for estimates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		if modelsJSON {
			b, err := utils.PrettyJSON(cat)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(b))
			return nil
		}
		for _, m := range cat {
			fmt.Printf("%-22s ctx=%-8d in=$%.5f/1K out=$%.5f/1K\n", m.Name, m.ContextTokens, m.InputPerK, m.OutputPerK)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the catalog as JSON")
}
