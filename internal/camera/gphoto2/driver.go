// Package gphoto2 implements the camera driver by shelling out to the
// gphoto2 command line tool.
package gphoto2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tethercam/camera-server/internal/camera"
)

// Driver opens connections through the gphoto2 binary
type Driver struct {
	bin     string
	timeout time.Duration
}

// New creates a gphoto2 driver
func New(bin string, timeout time.Duration) *Driver {
	if bin == "" {
		bin = "gphoto2"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Driver{bin: bin, timeout: timeout}
}

// Open detects the first available camera and probes it
func (d *Driver) Open(ctx context.Context) (camera.Conn, error) {
	out, err := d.run(ctx, "auto-detect", "--auto-detect")
	if err != nil {
		return nil, err
	}

	model, port, ok := parseAutoDetect(out)
	if !ok {
		return nil, camera.NewDriverError(camera.CodeModelNotFound, "auto-detect", "no camera detected")
	}
	log.Debug().Str("model", model).Str("port", port).Msg("camera detected")

	c := &conn{driver: d, port: port}

	// Probe the connection now so Open fails when the device is claimed by
	// another process rather than on the first real operation
	if _, err := c.Summary(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// conn is one live gphoto2 connection, bound to a USB port
type conn struct {
	driver *Driver
	port   string
}

// Summary returns the device summary text
func (c *conn) Summary(ctx context.Context) (string, error) {
	return c.run(ctx, "summary", "--summary")
}

// CapturePreview captures one preview frame and returns its bytes. The
// gphoto2 tool cannot rotate or mirror, so the presentation hints are
// recorded for the consumer but otherwise ignored here.
func (c *conn) CapturePreview(ctx context.Context, opts camera.PreviewOptions) ([]byte, error) {
	dir, err := os.MkdirTemp("", "gphoto2-preview-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "preview.jpg")
	if _, err := c.run(ctx, "capture-preview",
		"--capture-preview", "--filename", target, "--force-overwrite"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // no frame produced, session treats this as empty
		}
		return nil, fmt.Errorf("read preview frame: %w", err)
	}
	return data, nil
}

// TriggerCapture captures a full-resolution image to the camera's storage
func (c *conn) TriggerCapture(ctx context.Context) (camera.FileRef, error) {
	out, err := c.run(ctx, "capture-image", "--capture-image")
	if err != nil {
		return camera.FileRef{}, err
	}

	ref, ok := parseCaptureLocation(out)
	if !ok {
		return camera.FileRef{}, camera.NewDriverError(camera.CodeCameraError,
			"capture-image", "could not locate captured file in output")
	}
	return ref, nil
}

// DownloadFile retrieves a file from the camera's storage
func (c *conn) DownloadFile(ctx context.Context, ref camera.FileRef) ([]byte, error) {
	dir, err := os.MkdirTemp("", "gphoto2-download-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, ref.Name)
	if _, err := c.run(ctx, "get-file",
		"--folder", ref.Folder, "--get-file", ref.Name,
		"--filename", target, "--force-overwrite"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read downloaded file: %w", err)
	}
	return data, nil
}

// DeleteFile removes a file from the camera's storage
func (c *conn) DeleteFile(ctx context.Context, ref camera.FileRef) error {
	_, err := c.run(ctx, "delete-file",
		"--folder", ref.Folder, "--delete-file", ref.Name)
	return err
}

// ConfigTree reads the full configuration via --list-all-config
func (c *conn) ConfigTree(ctx context.Context) (*camera.ConfigNode, error) {
	out, err := c.run(ctx, "list-all-config", "--list-all-config")
	if err != nil {
		return nil, err
	}
	return parseConfigList(out), nil
}

// ApplyConfig pushes the tree back to the device. The CLI has no whole-tree
// write primitive, so the modified leaves are written individually.
func (c *conn) ApplyConfig(ctx context.Context, root *camera.ConfigNode) error {
	for _, leaf := range root.DirtyLeaves() {
		path := "/" + root.Path(leaf)
		if _, err := c.run(ctx, "set-config",
			"--set-config-value", fmt.Sprintf("%s=%s", path, leaf.Value)); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection. The CLI holds no persistent handle between
// invocations, so there is nothing to release device-side.
func (c *conn) Close(ctx context.Context) error {
	return nil
}

// run executes gphoto2 against this connection's port
func (c *conn) run(ctx context.Context, op string, args ...string) (string, error) {
	args = append([]string{"--port", c.port}, args...)
	return c.driver.run(ctx, op, args...)
}

// run executes the gphoto2 binary and classifies failures
func (d *Driver) run(ctx context.Context, op string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return "", camera.NewDriverError(camera.CodeTimeout, op, "command timed out")
	}
	return "", classify(op, stderr.String())
}

// classify maps gphoto2 stderr text to the session's error taxonomy
func classify(op, stderr string) *camera.DriverError {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "could not claim"),
		strings.Contains(lower, "device busy"),
		strings.Contains(lower, "camera is busy"):
		return camera.NewDriverError(camera.CodeBusy, op, msg)

	case strings.Contains(lower, "no camera found"),
		strings.Contains(lower, "could not detect any camera"),
		strings.Contains(lower, "unknown model"):
		return camera.NewDriverError(camera.CodeModelNotFound, op, msg)

	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"):
		return camera.NewDriverError(camera.CodeTimeout, op, msg)

	case strings.Contains(lower, "i/o problem"),
		strings.Contains(lower, "i/o error"),
		strings.Contains(lower, "io error"):
		return camera.NewDriverError(camera.CodeIO, op, msg)

	case strings.Contains(lower, "bad parameter"):
		return camera.NewDriverError(camera.CodeBadParameters, op, msg)

	case strings.Contains(lower, "not supported"),
		strings.Contains(lower, "unsupported"):
		return camera.NewDriverError(camera.CodeNotSupported, op, msg)

	default:
		return camera.NewDriverError(camera.CodeCameraError, op, msg)
	}
}
