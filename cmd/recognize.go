package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/workflow"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Identify the face in an image",
	Long: `Capture a face image and ask the recognition service who it is.
A face that matches nobody is a normal answer, not an error.

Examples:
  face-recognizer recognize --file visitor.jpg
  face-recognizer recognize --camera --json`,
	Args: cobra.NoArgs,
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
	addImageSourceFlags(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

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

	result, err := workflow.NewRecognition(client, logger).Submit(ctx, session)
	if err != nil {
		return describeSubmitError("recognition", err)
	}
	_, _ = session.Consume()

	if jsonOutput {
		return printJSON(result)
	}

	if !result.Matched() {
		fmt.Println(result.Message())
		return nil
	}
	user := result.User()
	confidence, _ := result.Confidence()
	fmt.Println(result.Message())
	fmt.Printf("  Name:       %s\n", user.Name)
	fmt.Printf("  Email:      %s\n", user.Email)
	fmt.Printf("  ID:         %s\n", user.ID)
	fmt.Printf("  Confidence: %.1f%%\n", confidence*100)
	return nil
}
