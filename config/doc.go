// Package config provides configuration loading and validation for imgapi.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (IMGAPI_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with IMGAPI_ prefix:
//   - server.port → IMGAPI_SERVER_PORT
//   - auth.secret → IMGAPI_AUTH_SECRET
//   - origin.base_url → IMGAPI_ORIGIN_BASE_URL
//   - cloudflare.api_token → IMGAPI_CLOUDFLARE_API_TOKEN
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port and max_body_size for admin requests
//   - Auth: the shared bearer secret
//   - Origin: base URL of untransformed images
//   - Storage: backend type (filesystem, memory, s3, minio) and its settings
//   - Transform: backend (cloudflare, local), zone host, user agent, timeout
//   - Cloudflare: purge API token, zone id and API base
//   - CORS: cross-origin resource sharing settings
//   - Metrics: listen address for /metrics and /healthz
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags plus cross-field checks:
//   - Port must be 1-65535
//   - origin.base_url must be an absolute URL
//   - Storage type must be filesystem, memory, s3, or minio; bucket
//     backends need storage.bucket
//   - transform.zone_host is required for the cloudflare backend
//   - Log level must be debug, info, warn, or error
package config
