package ctrl

import (
	"github.com/openziti/chunkpool/cmd/chunkpool/chunkpool"
	"github.com/spf13/cobra"
)

func init() {
	chunkpool.RootCmd.AddCommand(ctrlCmd)
}

var ctrlCmd = &cobra.Command{
	Use:   "ctrl",
	Short: "Control running metrics instruments",
}
