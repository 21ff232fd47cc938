package send

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"go.miloapis.com/email-provider-autosend/internal/cli"
	"go.miloapis.com/email-provider-autosend/internal/config"
	"go.miloapis.com/email-provider-autosend/pkg/autosend"
)

// NewSendCommand creates the send subcommand tree.
func NewSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send transactional email through Autosend",
	}

	config.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newEmailCommand(), newBulkCommand())

	return cmd
}

func newEmailCommand() *cobra.Command {
	var (
		msg                 autosend.EmailMessage
		replyTo, unsubGroup string
		dynamicData         map[string]string
		attachments         []string
	)

	cmd := &cobra.Command{
		Use:   "email",
		Short: "Send a single email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg.DynamicData = cli.ParseFields(dynamicData)
			if replyTo != "" {
				msg.ReplyTo = &autosend.Address{Email: replyTo}
			}
			if unsubGroup != "" {
				msg.Unsubscribe = &autosend.UnsubscribeOptions{GroupID: unsubGroup}
			}
			files, err := readAttachments(attachments)
			if err != nil {
				return err
			}
			msg.Attachments = files

			client, err := cli.NewClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Sending.SendEmail(cmd.Context(), msg)
			if err != nil {
				return err
			}
			return cli.PrintResponse(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&msg.To.Email, "to", "", "Recipient email address")
	cmd.Flags().StringVar(&msg.To.Name, "to-name", "", "Recipient display name")
	cmd.Flags().StringVar(&msg.From.Email, "from", "", "Sender email address")
	cmd.Flags().StringVar(&msg.From.Name, "from-name", "", "Sender display name")
	cmd.Flags().StringVar(&msg.Subject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&msg.HTML, "html", "", "HTML body")
	cmd.Flags().StringVar(&msg.Text, "text", "", "Plain text body")
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "Reply-To address")
	cmd.Flags().StringVar(&unsubGroup, "unsubscribe-group", "", "Unsubscribe group ID")
	cmd.Flags().StringToStringVar(&dynamicData, "data", nil, "Template data as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&attachments, "attach", nil, "File to attach (repeatable)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func newBulkCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Send one email to many recipients from a JSON message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var msg autosend.BulkEmailMessage
			if err := cli.ReadJSON(file, cmd.InOrStdin(), &msg); err != nil {
				return err
			}
			client, err := cli.NewClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Sending.SendBulk(cmd.Context(), msg)
			if err != nil {
				return err
			}
			return cli.PrintResponse(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON bulk message, or - for stdin")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// readAttachments loads files from disk as base64 attachments. The content
// type is guessed from the extension and left empty when unknown.
func readAttachments(paths []string) ([]autosend.Attachment, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make([]autosend.Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment: %w", err)
		}
		name := filepath.Base(p)
		out = append(out, autosend.Attachment{
			Filename:    name,
			Content:     base64.StdEncoding.EncodeToString(data),
			ContentType: mime.TypeByExtension(filepath.Ext(name)),
		})
	}
	return out, nil
}
