package main

import (
	"os"

	"github.com/arroweffect/imgapi/clientcli"
	"github.com/spf13/cobra"
)

var (
	uploadRecursive   bool
	uploadContentType string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [remote-path]",
	Short: "Upload images to the origin bucket",
	Long: `Upload images to the origin bucket.

The remote path defaults to the cleaned local path. Content types are
detected from the file extension unless --content-type is given.

Examples:
  imgapi-cli upload ./hero.jpg images/hero.jpg
  imgapi-cli upload -r ./assets/ static/
  imgapi-cli upload --content-type image/avif ./raw.bin images/raw.avif`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVarP(&uploadRecursive, "recursive", "r", false, "upload directory recursively")
	uploadCmd.Flags().StringVar(&uploadContentType, "content-type", "", "override content-type")
}

func runUpload(cmd *cobra.Command, args []string) error {
	opts := clientcli.UploadOptions{
		LocalPath:   args[0],
		ContentType: uploadContentType,
		Recursive:   uploadRecursive,
	}
	if len(args) > 1 {
		opts.RemotePath = args[1]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	formatter := getFormatter()

	results, err := client.Upload(cmd.Context(), opts)
	if err != nil {
		_ = formatter.FormatError(os.Stderr, err)
		return &exitError{code: 1}
	}

	if err := formatter.FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return &exitError{code: 1}
		}
	}

	return nil
}
