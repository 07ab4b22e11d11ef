package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "actionrun",
		Short:   "Load an action model and evaluate actions against host-implemented functions",
		Version: version,
		Long: `actionrun compiles an HCL action model (components, actions, and
declarations of host-implemented functions), then evaluates a chosen
action. Calls to declared functions are bridged to built-in host
modules; messages from the model are forwarded to the console.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd())
	return root
}
