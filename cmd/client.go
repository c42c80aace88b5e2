package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/capture"
	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/faceapi"
	"github.com/kozaktomas/face-recognizer/internal/logging"
)

// loadRuntime loads configuration and builds the logger for a command.
// Value ranges are left to the caller, which validates only what it uses.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// loadClientRuntime is loadRuntime for commands that talk to the service.
// Server and database settings are not checked.
func loadClientRuntime() (*config.Config, *zap.Logger, error) {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}

// newFaceClient connects to the recognition service named in the config.
// The global --capture flag overrides FACE_API_CAPTURE_DIR.
func newFaceClient(cfg *config.Config) (*faceapi.Client, error) {
	client, err := faceapi.NewClient(cfg.Client.URL, faceapi.WithTimeout(cfg.Client.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create recognition client: %w", err)
	}

	dir := captureDir
	if dir == "" {
		dir = cfg.Client.CaptureDir
	}
	if dir != "" {
		if err := client.SetCaptureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to set capture directory: %w", err)
		}
	}
	return client, nil
}

// addImageSourceFlags registers the mutually exclusive image source flags.
func addImageSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("file", "", "Image file to submit (JPEG, PNG, GIF, BMP)")
	cmd.Flags().Bool("camera", false, "Take a snapshot from CAMERA_SNAPSHOT_URL")
	cmd.MarkFlagsMutuallyExclusive("file", "camera")
	cmd.MarkFlagsOneRequired("file", "camera")
}

// acquirerFromFlags picks the image source selected on the command line.
func acquirerFromFlags(cmd *cobra.Command, cfg *config.Config) (capture.Acquirer, error) {
	if path := mustGetString(cmd, "file"); path != "" {
		return capture.FileAcquirer{Path: path}, nil
	}
	if mustGetBool(cmd, "camera") {
		camera := capture.NewHTTPCamera(cfg.Capture.CameraURL)
		if camera == nil {
			return nil, errors.New("--camera requires CAMERA_SNAPSHOT_URL to be set")
		}
		return capture.CameraAcquirer{Camera: camera}, nil
	}
	return nil, errors.New("either --file or --camera is required")
}

// captureSession acquires one image into a fresh capture session.
func captureSession(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*capture.Session, error) {
	acquirer, err := acquirerFromFlags(cmd, cfg)
	if err != nil {
		return nil, err
	}

	session := capture.NewSession(capture.NewEncoder(cfg.Capture.MaxDimension, cfg.Capture.JPEGQuality))
	if _, err := session.Capture(ctx, acquirer); err != nil {
		return nil, fmt.Errorf("failed to capture image: %w", err)
	}
	return session, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
