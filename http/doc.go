// Package http exposes the image gateway over HTTP.
//
// # Routes
//
//	POST /upload   bearer auth, JSON {path, contentType, fileBase64}, text responses
//	POST /delete   bearer auth, JSON {path}, JSON responses
//	POST /purge    bearer auth, JSON {url}, text errors and JSON success
//	*    /*        everything else serves images through the transformer
//
// Admin routes compare the Authorization header against a single shared
// secret. The image route is public.
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{
//	    Secret:      os.Getenv("IMGAPI_AUTH_SECRET"),
//	    MaxBodySize: 32 << 20,
//	}
//	handler := http.NewHandler(&handlerCfg, service)
//	http.ListenAndServe(":8080", handler.Router())
//
// The service parameter must implement the Service interface; *imgapi.Service
// does.
//
// # Middleware
//
// Router always installs chi's RequestID and Recoverer plus AccessLog.
// CORS and any extra middleware (such as metrics) are added from
// HandlerConfig.
package http
