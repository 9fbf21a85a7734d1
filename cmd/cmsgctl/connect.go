package main

import (
	"fmt"

	"github.com/JeffersonLab/cmsg-go/pkg/cmsg"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func connectFromFlags() (*cmsg.Client, error) {
	udl := viper.GetString("udl")
	if udl == "" {
		return nil, fmt.Errorf("--udl is required")
	}
	return cmsg.Connect(udl, viper.GetString("name"), viper.GetString("description"))
}

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect and immediately disconnect, to sanity-check a locator",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connectFromFlags()
			if err != nil {
				color.Red("connect failed: %v", err)
				return err
			}
			defer c.Disconnect()
			color.Green("connected")
			return nil
		},
	}
}
