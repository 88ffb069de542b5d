package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [OUTPUT_PATH]",
		Short: "Remove temporary files left by interrupted downloads",
		Long:  "Removes the .part files for OUTPUT_PATH and any leftover HLS scratch directories in the temp directory beside it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			if err := utils.Clean(target); err != nil {
				return fmt.Errorf("error cleaning temporary files: %v", err)
			}
			output.PrintSuccess("Temporary files cleaned up")
			return nil
		},
	}
}
