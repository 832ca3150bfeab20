package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MrTornister/Work-Flow-app/password"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errNoMatch = errors.New("password does not match")

// passwordArg returns args[idx] or prompts for it without echo.
func passwordArg(args []string, idx int, w io.Writer) (string, error) {
	if len(args) > idx {
		return args[idx], nil
	}
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func newHashCmd() *cobra.Command {
	var (
		algorithm  string
		skipPolicy bool
	)
	cmd := &cobra.Command{
		Use:   "hash [password]",
		Short: "Hash a password for the users table",
		Long:  "Hash a password with argon2id (default) or bcrypt. Without an argument the password is read from the terminal.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordArg(args, 0, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !skipPolicy {
				if err := password.DefaultPolicy().Validate(pw); err != nil {
					return err
				}
			}

			cfg := password.DefaultConfig()
			cfg.Algorithm = algorithm
			hasher, err := password.New(cfg)
			if err != nil {
				return err
			}
			digest, err := hasher.Hash(pw)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), digest)
			return err
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", password.AlgorithmArgon2id, "argon2id or bcrypt")
	cmd.Flags().BoolVar(&skipPolicy, "skip-policy", false, "hash even if the password fails the strength policy")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <digest> [password]",
		Short: "Check a password against a stored digest",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordArg(args, 1, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !password.Verify(pw, args[0]) {
				return errNoMatch
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "match")
			return err
		},
	}
}
