package camera

import "context"

// FileRef identifies a file on the camera's own storage
type FileRef struct {
	Folder string
	Name   string
}

// String returns the camera-side path
func (r FileRef) String() string {
	return r.Folder + "/" + r.Name
}

// PreviewOptions carries presentation hints for preview captures. They are
// passed through to the driver unmodified; a driver may ignore them.
type PreviewOptions struct {
	Rotation int
	Flip     bool
}

// Driver opens connections to a physical camera
type Driver interface {
	Open(ctx context.Context) (Conn, error)
}

// Conn is a live connection to a camera. Conn is not safe for concurrent
// use; the Session serializes all access behind its gate.
type Conn interface {
	// Summary returns the device's human-readable summary text
	Summary(ctx context.Context) (string, error)

	// CapturePreview captures one still frame without writing to the
	// camera's storage and returns the raw bytes
	CapturePreview(ctx context.Context, opts PreviewOptions) ([]byte, error)

	// TriggerCapture performs a full-resolution capture to the camera's own
	// storage and returns the resulting file reference
	TriggerCapture(ctx context.Context) (FileRef, error)

	// DownloadFile retrieves a file from the camera's storage
	DownloadFile(ctx context.Context, ref FileRef) ([]byte, error)

	// DeleteFile removes a file from the camera's storage
	DeleteFile(ctx context.Context, ref FileRef) error

	// ConfigTree reads the full configuration tree from the device
	ConfigTree(ctx context.Context) (*ConfigNode, error)

	// ApplyConfig pushes the configuration tree back to the device
	ApplyConfig(ctx context.Context, root *ConfigNode) error

	// Close releases the connection
	Close(ctx context.Context) error
}
