package main

import (
	"os"

	"github.com/arroweffect/imgapi/clientcli"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <remote-path> [remote-path...]",
	Short: "Delete images from the origin bucket",
	Long: `Delete one or more images from the origin bucket.

Deleting does not evict CDN copies; run purge for the public URLs afterwards.

Examples:
  imgapi-cli delete images/hero.jpg
  imgapi-cli delete old/a.png old/b.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	formatter := getFormatter()

	results, err := client.Delete(cmd.Context(), clientcli.DeleteOptions{Paths: args})
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return &exitError{code: 1}
	}

	if err := formatter.FormatDelete(os.Stdout, results); err != nil {
		return err
	}

	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}
