package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arroweffect/imgapi/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "imgapi",
	Short:   "Image gateway with on-the-fly transformation",
	Long: `imgapi stores images in an object store, serves them through an
image transformation backend, and purges them from the Cloudflare cache.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
			files = append(files, configFile)
		}

		cfg, err := config.Load(files, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("origin", "", "origin base URL (env: IMGAPI_ORIGIN_BASE_URL)")
	rootCmd.PersistentFlags().String("storage-type", "", "storage backend: filesystem, memory, s3, minio (default: filesystem)")
	rootCmd.PersistentFlags().String("storage-path", "", "storage directory path (default: ./data, env: IMGAPI_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
