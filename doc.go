// Package imgapi provides an edge image gateway: an authenticated admin API
// for writing to and deleting from an object store and purging CDN cache
// entries, and an unauthenticated image-serving path that rewrites requests
// into on-the-fly transformation requests against an origin.
//
// # Key Components
//
//   - Service: Orchestrates uploads, deletes, purges and image serving
//   - ObjectStore: Interface for key-addressed blob storage (filesystem, S3, MinIO)
//   - CachePurger: Interface for CDN cache purges (Cloudflare)
//   - ImageTransformer: Interface for fetching transformed images (Cloudflare, local)
//   - IsValidPath: Validation for caller-supplied storage keys
//   - IsAuthorized: Bearer token check against the configured secret
//   - BuildTransformOptions: Query and Accept header mapping to transformation options
//
// # Example Usage
//
//	service, err := imgapi.NewService(store, purger, transformer, imgapi.ServiceConfig{
//	    OriginBaseURL: "https://images.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store an object
//	info, err := service.Upload(ctx, imgapi.UploadRequest{
//	    Path:        "photos/cat.jpg",
//	    ContentType: "image/jpeg",
//	    FileBase64:  encoded,
//	})
//
//	// Serve a transformed image
//	resp, err := service.ServeImage(ctx, imgapi.ImageRequest{
//	    Path:   "photos/cat.jpg",
//	    Query:  url.Values{"width": {"800"}},
//	    Accept: "image/webp,*/*",
//	})
//
// See the http package for the REST surface and the bucket, cloudflare and
// localimage packages for backend implementations.
package imgapi
