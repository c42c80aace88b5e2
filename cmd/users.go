package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kozaktomas/face-recognizer/internal/faceapi"
	"github.com/kozaktomas/face-recognizer/internal/workflow"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage enrolled users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled users",
	Long: `List enrolled users in the order the service returns them.

Examples:
  face-recognizer users list
  face-recognizer users list --skip 100 --limit 50 --json`,
	Args: cobra.NoArgs,
	RunE: runUsersList,
}

var usersGetCmd = &cobra.Command{
	Use:   "get [user-id]",
	Short: "Show a single user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersGet,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete [user-id]",
	Short: "Delete a user",
	Long: `Delete an enrolled user. You are asked to confirm on a terminal;
pass --yes to confirm non-interactively.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersDelete,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd, usersGetCmd, usersDeleteCmd)

	usersListCmd.Flags().Int("skip", 0, "Number of users to skip")
	usersListCmd.Flags().Int("limit", 100, "Maximum number of users to return")
	usersListCmd.Flags().Bool("json", false, "Output as JSON")

	usersGetCmd.Flags().Bool("json", false, "Output as JSON")

	usersDeleteCmd.Flags().Bool("yes", false, "Confirm deletion without prompting")
}

func newDirectory() (*workflow.Directory, func(), error) {
	cfg, logger, err := loadClientRuntime()
	if err != nil {
		return nil, nil, err
	}
	client, err := newFaceClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return workflow.NewDirectory(client, logger), func() { _ = logger.Sync() }, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	skip := mustGetInt(cmd, "skip")
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	dir, cleanup, err := newDirectory()
	if err != nil {
		return err
	}
	defer cleanup()

	page, err := dir.List(cmd.Context(), skip, limit)
	if err != nil {
		return describeSubmitError("listing users", err)
	}

	if jsonOutput {
		return printJSON(faceapi.UserList{Users: page.Users, Total: &page.Total})
	}

	if len(page.Users) == 0 {
		fmt.Println("No users enrolled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCREATED")
	fmt.Fprintln(w, "--\t----\t-----\t-------")
	for _, u := range page.Users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()

	fmt.Printf("\nShowing %d-%d of %d\n", skip+1, skip+len(page.Users), page.Total)
	return nil
}

func runUsersGet(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	dir, cleanup, err := newDirectory()
	if err != nil {
		return err
	}
	defer cleanup()

	user, err := dir.Get(cmd.Context(), faceapi.UserID(args[0]))
	if faceapi.IsNotFoundError(err) {
		return fmt.Errorf("no user with id %s", args[0])
	}
	if err != nil {
		return describeSubmitError("fetching user", err)
	}

	if jsonOutput {
		return printJSON(user)
	}
	fmt.Printf("ID:      %s\n", user.ID)
	fmt.Printf("Name:    %s\n", user.Name)
	fmt.Printf("Email:   %s\n", user.Email)
	fmt.Printf("Created: %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
	if user.UpdatedAt != nil {
		fmt.Printf("Updated: %s\n", user.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	yes := mustGetBool(cmd, "yes")
	id := faceapi.UserID(args[0])

	dir, cleanup, err := newDirectory()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	req := dir.RequestDelete(id)

	if yes {
		req.Confirm()
	} else {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("refusing to delete without confirmation; pass --yes")
		}
		user, err := dir.Get(ctx, id)
		if err != nil {
			return describeSubmitError("fetching user", err)
		}
		ok, err := confirm(fmt.Sprintf("Delete %s <%s> (id %s)?", user.Name, user.Email, user.ID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted")
			return nil
		}
		req.Confirm()
	}

	if err := dir.ConfirmDelete(ctx, req); err != nil {
		var delErr *workflow.DeletionError
		if errors.As(err, &delErr) && delErr.Reason != "" {
			return fmt.Errorf("delete failed: %s", delErr.Reason)
		}
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted user %s\n", id)
	return nil
}

// confirm asks a yes/no question on stdin. Anything but y/yes is a no.
func confirm(question string) (bool, error) {
	fmt.Printf("%s [y/N]: ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
