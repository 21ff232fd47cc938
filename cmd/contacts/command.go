package contacts

import (
	"context"

	"github.com/spf13/cobra"

	"go.miloapis.com/email-provider-autosend/internal/cli"
	"go.miloapis.com/email-provider-autosend/internal/config"
	"go.miloapis.com/email-provider-autosend/pkg/autosend"
)

// NewContactsCommand creates the contacts subcommand tree.
func NewContactsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage Autosend contacts",
		Long:  "Create, look up and delete contacts in Autosend.",
	}

	config.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newWriteCommand("create", "Create a contact", func(ctx context.Context, c autosend.ContactsAPI, req autosend.ContactRequest) (*autosend.Response, error) {
			return c.Create(ctx, req)
		}),
		newWriteCommand("upsert", "Create or update a contact by email", func(ctx context.Context, c autosend.ContactsAPI, req autosend.ContactRequest) (*autosend.Response, error) {
			return c.Upsert(ctx, req)
		}),
		newIDCommand("get <id>", "Get a contact by ID", autosend.ContactsAPI.Get),
		newIDCommand("delete <id>", "Delete a contact by ID", autosend.ContactsAPI.DeleteByID),
		newIDCommand("delete-by-user-id <userId>", "Delete a contact by application user ID", autosend.ContactsAPI.DeleteByUserID),
		newIDCommand("unsubscribe-groups <id>", "List a contact's unsubscribe groups", autosend.ContactsAPI.GetUnsubscribeGroups),
		newEmailsCommand("remove <email>...", "Remove contacts by email", autosend.ContactsAPI.Remove),
		newEmailsCommand("search <email>...", "Find contacts by email", autosend.ContactsAPI.SearchByEmails),
		newBulkUpdateCommand(),
	)

	return cmd
}

func newWriteCommand(use, short string, call func(context.Context, autosend.ContactsAPI, autosend.ContactRequest) (*autosend.Response, error)) *cobra.Command {
	var (
		req          autosend.ContactRequest
		customFields map[string]string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := cli.NewClient(cmd)
			if err != nil {
				return err
			}
			req.CustomFields = cli.ParseFields(customFields)
			resp, err := call(cmd.Context(), client.Contacts, req)
			if err != nil {
				return err
			}
			return cli.PrintResponse(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Contact email address")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&req.UserID, "user-id", "", "Application user ID")
	cmd.Flags().StringToStringVar(&customFields, "custom-field", nil, "Custom field as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newIDCommand(use, short string, call func(autosend.ContactsAPI, context.Context, string) (*autosend.Response, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := cli.NewClient(cmd)
			if err != nil {
				return err
			}
			resp, err := call(client.Contacts, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cli.PrintResponse(cmd.OutOrStdout(), resp)
		},
	}
}

func newEmailsCommand(use, short string, call func(autosend.ContactsAPI, context.Context, []string) (*autosend.Response, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := cli.NewClient(cmd)
			if err != nil {
				return err
			}
			resp, err := call(client.Contacts, cmd.Context(), args)
			if err != nil {
				return err
			}
			return cli.PrintResponse(cmd.OutOrStdout(), resp)
		},
	}
}

func newBulkUpdateCommand() *cobra.Command {
	var (
		file        string
		runWorkflow bool
	)

	cmd := &cobra.Command{
		Use:   "bulk-update",
		Short: "Update many contacts from a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var contacts []autosend.ContactRequest
			if err := cli.ReadJSON(file, cmd.InOrStdin(), &contacts); err != nil {
				return err
			}
			client, err := cli.NewClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Contacts.BulkUpdate(cmd.Context(), contacts, runWorkflow)
			if err != nil {
				return err
			}
			return cli.PrintResponse(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with an array of contacts, or - for stdin")
	cmd.Flags().BoolVar(&runWorkflow, "run-workflow", false, "Trigger contact workflows for the updated contacts")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
