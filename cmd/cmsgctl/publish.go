package main

import (
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	var subject, msgType, text string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Send one message and disconnect",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connectFromFlags()
			if err != nil {
				return err
			}
			defer c.Disconnect()

			msg := &message.Message{Subject: subject, Type: msgType, Text: text}
			if err := c.Send(msg); err != nil {
				color.Red("send failed: %v", err)
				return err
			}
			color.Green("sent %s/%s", subject, msgType)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&msgType, "type", "", "message type")
	cmd.Flags().StringVar(&text, "text", "", "message text payload")
	return cmd
}
