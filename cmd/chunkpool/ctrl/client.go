package ctrl

import (
	"github.com/openziti/chunkpool/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	clientCmd.Flags().StringVarP(&clientCommand, "command", "c", "write", "Command to send (start, stop, write, clean)")
	ctrlCmd.AddCommand(clientCmd)
}

var clientCmd = &cobra.Command{
	Use:   "client <path>",
	Short: "Connect to a metrics instrument controller",
	Args:  cobra.ExactArgs(1),
	Run:   client,
}
var clientCommand string

func client(_ *cobra.Command, args []string) {
	response, err := util.SendCtrl(args[0], clientCommand)
	if err != nil {
		panic(err)
	}
	logrus.Infof("response:\n%s\n", response)
}
