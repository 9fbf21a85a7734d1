package main

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newMonitorCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print a snapshot of this connection's counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connectFromFlags()
			if err != nil {
				return err
			}
			defer c.Disconnect()

			report, err := c.Monitor(timeout)
			if err != nil {
				color.Red("monitor failed: %v", err)
				return err
			}
			color.Yellow("tcpSends=%d udpSends=%d subscribes=%d pendingSendAndGets=%d",
				report.TCPSends, report.UDPSends, report.Subscribes, report.PendingSendAndGets)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "reply timeout")
	return cmd
}
