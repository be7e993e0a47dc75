package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"multitimer/internal/transfer"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write all timers to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := exportTimers(cmd, a, afero.NewOsFs(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d timers to %s\n", count, args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create timers from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := importTimers(cmd, a, afero.NewOsFs(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d timers from %s\n", count, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}

func exportTimers(cmd *cobra.Command, a *app, fs afero.Fs, path string) (int, error) {
	doc, apiErr := a.transfers.ExportDocument(cmd.Context(), a.user.ID)
	if apiErr != nil {
		return 0, apiErr
	}
	if err := transfer.WriteFile(fs, path, doc); err != nil {
		return 0, err
	}
	return len(doc.Timers), nil
}

func importTimers(cmd *cobra.Command, a *app, fs afero.Fs, path string) (int, error) {
	doc, err := transfer.ReadFile(fs, path)
	if err != nil {
		return 0, err
	}
	created, apiErr := a.transfers.ImportDocument(cmd.Context(), a.user.ID, doc)
	if apiErr != nil {
		return 0, apiErr
	}
	return len(created), nil
}
