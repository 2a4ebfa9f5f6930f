package config_test

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/pflag"

	"github.com/arroweffect/imgapi/config"
)

func ExampleLoad() {
	flags := pflag.NewFlagSet("imgapi", pflag.ContinueOnError)
	flags.String("origin", "", "origin base URL")
	_ = flags.Parse([]string{"--origin", "https://origin.example.com"})

	cfg, err := config.Load([]string{"testdata/does-not-exist.yaml"}, flags)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Port: %d, Storage: %s\n", cfg.Server.Port, cfg.Storage.Type)
	// Output: Port: 8080, Storage: filesystem
}

func ExampleWithContext() {
	cfg := &config.Config{Server: config.ServerConfig{Port: 8080}}

	// Store config in context
	ctx := config.WithContext(context.Background(), cfg)

	// Retrieve later (e.g., in a subcommand)
	retrieved, err := config.FromContext(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Retrieved port: %d\n", retrieved.Server.Port)
	// Output: Retrieved port: 8080
}
