// Command cmsgctl is a small demonstration CLI over pkg/cmsg: connect,
// publish, subscribe, and monitor a cMsg or RC domain connection.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cmsgctl",
		Short: "Connect, publish, subscribe, and monitor cMsg domain servers",
	}

	root.PersistentFlags().String("udl", "", "locator, e.g. cmsg:cMsg://localhost:45000/cMsg/test")
	root.PersistentFlags().String("name", "cmsgctl", "client name presented to the server")
	root.PersistentFlags().String("description", "", "free-text client description")
	_ = viper.BindPFlag("udl", root.PersistentFlags().Lookup("udl"))
	_ = viper.BindPFlag("name", root.PersistentFlags().Lookup("name"))
	_ = viper.BindPFlag("description", root.PersistentFlags().Lookup("description"))
	viper.SetEnvPrefix("cmsgctl")
	viper.AutomaticEnv()

	root.AddCommand(newConnectCmd(), newPublishCmd(), newSubscribeCmd(), newMonitorCmd())
	return root
}
