// Package cloudflare provides the Cloudflare-backed collaborators of the
// gateway: a CachePurger calling the zone purge_cache API through
// cloudflare-go and an ImageTransformer using URL-based Image Resizing
// (/cdn-cgi/image/).
//
// # Purging
//
//	client, err := cloudflare.NewClient(zoneID, apiToken)
//	resp, err := client.Purge(ctx, "https://images.example.com/a.jpg")
//
// A response with "success": false or a non-2xx status is returned as an
// *imgapi.UpstreamError whose Detail holds the API "errors" array.
//
// # Transforming
//
//	tr, err := cloudflare.NewTransformer("https://images.example.com")
//	resp, err := tr.Fetch(ctx, imgapi.FetchRequest{
//	    OriginURL: "https://origin.example.com/a.jpg",
//	    Options:   imgapi.TransformOptions{"width": 800.0, "format": "webp"},
//	})
//
// The transformer issues
// GET https://images.example.com/cdn-cgi/image/format=webp,width=800/https://origin.example.com/a.jpg
// and fetches OriginURL directly when the request has no options. Only the
// wait for response headers is bounded; the body streams under the caller's
// context.
package cloudflare
