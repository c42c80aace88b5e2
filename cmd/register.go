package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/workflow"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Enroll a new user with a face image",
	Long: `Capture a face image and enroll it under a name and email address.

Examples:
  # Enroll from an image file
  face-recognizer register --name "Ana Ruiz" --email ana@example.com --file ana.jpg

  # Enroll from the configured camera
  face-recognizer register --name "Ana Ruiz" --email ana@example.com --camera`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("name", "", "Full name of the user")
	registerCmd.Flags().String("email", "", "Email address of the user")
	registerCmd.Flags().Bool("json", false, "Output as JSON")
	addImageSourceFlags(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	email := mustGetString(cmd, "email")
	jsonOutput := mustGetBool(cmd, "json")

	// Reject missing identity fields before touching the camera.
	if _, _, err := workflow.CheckIdentity(name, email); err != nil {
		return describeSubmitError("registration", err)
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

	session, err := captureSession(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	user, err := workflow.NewRegistration(client, logger).Submit(ctx, name, email, session)
	if err != nil {
		return describeSubmitError("registration", err)
	}
	// The image has served its purpose; release it.
	_, _ = session.Consume()

	if jsonOutput {
		return printJSON(user)
	}
	fmt.Printf("Registered %s <%s> (id %s)\n", user.Name, user.Email, user.ID)
	return nil
}

// describeSubmitError turns workflow errors into the message shown to the user.
func describeSubmitError(action string, err error) error {
	var vErr *workflow.ValidationError
	if errors.As(err, &vErr) {
		return fmt.Errorf("%s: %s", action, vErr.Message)
	}
	var subErr *workflow.SubmissionError
	if errors.As(err, &subErr) {
		return fmt.Errorf("%s failed: %s", action, subErr.Message())
	}
	return fmt.Errorf("%s failed: %w", action, err)
}
