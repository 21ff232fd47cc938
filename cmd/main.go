package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	contacts "go.miloapis.com/email-provider-autosend/cmd/contacts"
	manager "go.miloapis.com/email-provider-autosend/cmd/manager"
	send "go.miloapis.com/email-provider-autosend/cmd/send"
	version "go.miloapis.com/email-provider-autosend/cmd/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "email-provider-autosend",
		Short:         "Autosend is the email provider for Milo",
		Long:          "A Kubernetes controller and command line client for the Autosend email provider.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(manager.CreateManagerCommand())
	rootCmd.AddCommand(version.NewVersionCommand())
	rootCmd.AddCommand(contacts.NewContactsCommand())
	rootCmd.AddCommand(send.NewSendCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
