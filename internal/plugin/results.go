package plugin

import (
	"github.com/deckshare/localsend-bridge/internal/config"
	"github.com/deckshare/localsend-bridge/internal/files"
)

// Result is the generic success/error reply.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BackendConfig is the merged view of the engine alias and plugin settings.
type BackendConfig struct {
	Alias string `json:"alias"`
	config.Settings
}

// SetConfigResult reports the outcome of a configuration change.
type SetConfigResult struct {
	Success   bool   `json:"success"`
	Restarted bool   `json:"restarted"`
	Running   bool   `json:"running"`
	Error     string `json:"error,omitempty"`
}

// FolderListing is the reply for a recursive folder listing.
type FolderListing struct {
	Success    bool          `json:"success"`
	Files      []files.Entry `json:"files"`
	FolderName string        `json:"folderName,omitempty"`
	Count      int           `json:"count"`
	Error      string        `json:"error,omitempty"`
}

// PreparedUpload is the reply for a folder archived for sending.
type PreparedUpload struct {
	Success  bool   `json:"success"`
	Path     string `json:"path,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	FileType string `json:"file_type,omitempty"`
	Error    string `json:"error,omitempty"`
}
