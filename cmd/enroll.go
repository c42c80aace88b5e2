package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-recognizer/internal/capture"
	"github.com/kozaktomas/face-recognizer/internal/workflow"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [manifest.yaml]",
	Short: "Enroll many users from a YAML manifest",
	Long: `Enroll every user listed in a YAML manifest, one after another.

Image paths are resolved relative to the manifest's directory.

Manifest format:
  users:
    - name: Ana Ruiz
      email: ana@example.com
      image: faces/ana.jpg

Entries that fail are reported at the end; the command exits non-zero
when any entry failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("dry-run", false, "Validate the manifest and images without enrolling")
}

// enrollManifest is the batch enrollment file.
type enrollManifest struct {
	Users []enrollEntry `yaml:"users"`
}

type enrollEntry struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Image string `yaml:"image"`
}

// loadManifest parses a manifest and resolves image paths against its directory.
func loadManifest(path string) (*enrollManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m enrollManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Users) == 0 {
		return nil, errors.New("manifest lists no users")
	}

	base := filepath.Dir(path)
	for i := range m.Users {
		e := &m.Users[i]
		if strings.TrimSpace(e.Image) == "" {
			return nil, fmt.Errorf("entry %d (%s): image is required", i+1, e.Email)
		}
		if !filepath.IsAbs(e.Image) {
			e.Image = filepath.Join(base, e.Image)
		}
	}
	return &m, nil
}

type enrollFailure struct {
	entry enrollEntry
	err   error
}

func runEnroll(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")

	manifest, err := loadManifest(args[0])
	if err != nil {
		return err
	}

	cfg, logger, err := loadClientRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client, err := newFaceClient(cfg)
	if err != nil {
		return err
	}
	registration := workflow.NewRegistration(client, logger)
	encoder := capture.NewEncoder(cfg.Capture.MaxDimension, cfg.Capture.JPEGQuality)

	bar := progressbar.NewOptions(len(manifest.Users),
		progressbar.OptionSetDescription("Enrolling users"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("users"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var failures []enrollFailure
	enrolled := 0
	for _, entry := range manifest.Users {
		if ctx.Err() != nil {
			failures = append(failures, enrollFailure{entry: entry, err: ctx.Err()})
			continue
		}

		if _, _, err := workflow.CheckIdentity(entry.Name, entry.Email); err != nil {
			failures = append(failures, enrollFailure{entry: entry, err: describeSubmitError("registration", err)})
			_ = bar.Add(1)
			continue
		}

		session := capture.NewSession(encoder)
		if _, err := session.Capture(ctx, capture.FileAcquirer{Path: entry.Image}); err != nil {
			failures = append(failures, enrollFailure{entry: entry, err: fmt.Errorf("capture: %w", err)})
			_ = bar.Add(1)
			continue
		}

		if !dryRun {
			user, err := registration.Submit(ctx, entry.Name, entry.Email, session)
			if err != nil {
				failures = append(failures, enrollFailure{entry: entry, err: describeSubmitError("registration", err)})
				_ = bar.Add(1)
				continue
			}
			logger.Debug("enrolled", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
		}
		_, _ = session.Consume()
		enrolled++
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	verb := "Enrolled"
	if dryRun {
		verb = "Validated"
	}
	fmt.Printf("\n%s %d of %d users\n", verb, enrolled, len(manifest.Users))

	if len(failures) > 0 {
		fmt.Printf("\nFailures: %d\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  - %s <%s>: %v\n", f.entry.Name, f.entry.Email, f.err)
		}
		return fmt.Errorf("%d of %d entries failed", len(failures), len(manifest.Users))
	}
	return nil
}
