package clientcli

import "encoding/json"

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string
	RemotePath  string
	ContentType string // optional, auto-detect if empty
	Recursive   bool
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath   string `json:"local_path"`
	RemotePath  string `json:"remote_path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
	Message     string `json:"message"`
	Err         error  `json:"-"` // nil on success
}

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	Paths []string
}

// DeleteResult represents the result of deleting a single file.
type DeleteResult struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"` // nil on success
}

// PurgeOptions configures a purge operation.
type PurgeOptions struct {
	URLs []string
}

// PurgeResult represents the result of purging a single URL from the CDN.
type PurgeResult struct {
	URL    string          `json:"url"`
	Purged bool            `json:"purged"`
	Detail json.RawMessage `json:"cloudflare,omitempty"`
	Err    error           `json:"-"` // nil on success
}
