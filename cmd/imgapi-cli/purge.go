package main

import (
	"os"

	"github.com/arroweffect/imgapi/clientcli"
	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <url> [url...]",
	Short: "Purge public URLs from the CDN cache",
	Long: `Purge one or more public image URLs from the CDN cache.

URLs must be absolute. Transformed variants are cached under their own
URLs and have to be purged individually.

Examples:
  imgapi-cli purge https://img.example.com/images/hero.jpg
  imgapi-cli --json purge https://img.example.com/a.png https://img.example.com/b.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPurge,
}

func runPurge(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	formatter := getFormatter()

	results, err := client.Purge(cmd.Context(), clientcli.PurgeOptions{URLs: args})
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return &exitError{code: 1}
	}

	if err := formatter.FormatPurge(os.Stdout, results); err != nil {
		return err
	}

	if clientcli.HasPurgeErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}
