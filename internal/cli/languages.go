package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factcheck/internal/model"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CODE\tNAME\tNATIVE")
		for _, l := range model.SupportedLanguages {
			marker := ""
			if l == model.DefaultLanguage {
				marker = " (default)"
			}
			fmt.Fprintf(tw, "%s\t%s%s\t%s\n", l, l.EnglishName(), marker, l.NativeName())
		}
		_ = tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
