package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSubscribeCmd() *cobra.Command {
	var subject, msgType string

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe and print delivered messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connectFromFlags()
			if err != nil {
				return err
			}
			defer c.Disconnect()

			_, err = c.Subscribe(subject, msgType, func(msg *message.Message, _ any) {
				color.Cyan("[%s/%s] %s", msg.Subject, msg.Type, msg.Text)
			}, domain.SubscribeOptions{})
			if err != nil {
				color.Red("subscribe failed: %v", err)
				return err
			}

			color.Green("subscribed to %s/%s, press Ctrl-C to stop", subject, msgType)
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "*", "subject pattern")
	cmd.Flags().StringVar(&msgType, "type", "*", "type pattern")
	return cmd
}
