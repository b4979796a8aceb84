package cmd

import (
	"fmt"
	"os"

	"github.com/KaramelBytes/agentcompare/internal/utils"
	"github.com/spf13/cobra"
)

var (
	agentsInput inputFlags
	agentsJSON  bool
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agents found in the exports",
	Example: `  agentcompare agents --old q1.csv --new q2.csv
  agentcompare agents --old q1.csv --new q2.csv --exclude Bob --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := agentsInput.loadSession(cmd)
		if err != nil {
			return err
		}
		if agentsJSON {
			b, err := utils.PrettyJSON(map[string]any{
				"agents":   nonNil(st.Agents),
				"selected": nonNil(st.Selection.Names()),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(b))
			return nil
		}
		if len(st.Agents) == 0 {
			fmt.Println("No agents found (is there a Name column?)")
			return nil
		}
		for _, name := range st.Agents {
			mark := " "
			if st.Selection.Has(name) {
				mark = "x"
			}
			fmt.Printf("[%s] %s\n", mark, name)
		}
		fmt.Printf("\n%d of %d selected\n", st.Selection.Len(), len(st.Agents))
		return nil
	},
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsInput.register(agentsCmd, true)
	agentsCmd.Flags().BoolVar(&agentsJSON, "json", false, "print the directory as JSON")
}
