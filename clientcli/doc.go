// Package clientcli provides a client library for the admin routes of an imgapi server.
//
// It supports upload, delete and CDN purge operations, authenticated with the
// shared bearer token. Profiles stored in a YAML file keep the endpoint and
// token of several servers.
//
// # Basic Usage
//
// Create a client and upload an image:
//
//	cfg := &clientcli.Config{
//		Endpoint: "http://localhost:8080",
//		Token:    "admin-secret",
//	}
//
//	client, err := clientcli.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath:  "./hero.jpg",
//		RemotePath: "images/hero.jpg",
//	})
//
// # Profile Configuration
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli
