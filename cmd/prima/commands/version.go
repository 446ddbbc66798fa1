package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hunterdeturk/PRIMA/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		short, _ := cmd.Flags().GetBool("short")
		asJSON, _ := cmd.Flags().GetBool("json")

		out := cmd.OutOrStdout()
		switch {
		case short:
			_, err := fmt.Fprintln(out, version.String())
			return err
		case asJSON:
			data, err := json.MarshalIndent(version.Get(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		default:
			_, err := fmt.Fprintln(out, version.Full())
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("short", false, "print only the version number")
	versionCmd.Flags().Bool("json", false, "print version information as JSON")
}
