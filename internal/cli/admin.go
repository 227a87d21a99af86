package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entrypoint"
)

var errPasswordMismatch = errors.New("passwords do not match")

func newAdminCommand(cfg func() *config.Config) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage desk administrators",
	}

	var (
		userID, name, contact string
		passwordStdin         bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		Example: "  librarian admin create --id desk --name \"Front Desk\"\n" +
			"  echo secret | librarian admin create --id desk --password-stdin",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}

			c := cfg()
			return withServices(c, func(svc *entrypoint.Services) error {
				user, err := auth.NewService(svc.DB.DB, c.Auth).CreateAdmin(userID, name, contact, password)
				if err != nil {
					return err
				}
				svc.Audit.LogAuth(user.UserID, "create_admin", "", "cli", true)
				fmt.Fprintf(cmd.OutOrStdout(), "Created administrator %s\n", user.UserID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&userID, "id", "", "Administrator user id (required)")
	create.Flags().StringVar(&name, "name", "", "Display name")
	create.Flags().StringVar(&contact, "contact", "", "Contact details")
	create.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin instead of prompting")
	_ = create.MarkFlagRequired("id")

	admin.AddCommand(create)
	return admin
}

// readPassword takes the first line of stdin, or prompts twice without echo
// when stdin is a terminal.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal, use --password-stdin")
	}

	out := cmd.ErrOrStderr()
	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(out, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}
