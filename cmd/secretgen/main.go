package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/sessionguard/internal/infrastructure/crypto"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd prints a fresh token secret; the hash-password subcommand
// produces principal password hashes for the memory backend.
func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var envStyle bool
	root := &cobra.Command{
		Use:   "secretgen",
		Short: "Generate a shared secret for the sessionguard token codec.",
		Long: `secretgen prints a random 32-byte secret, hex encoded, suitable for
jwt.shared_secret or the SESSIONGUARD_JWT_SHARED_SECRET environment variable.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := crypto.GenerateSharedSecret()
			if err != nil {
				return err
			}
			encoded := crypto.EncodeSharedSecret(secret)
			if envStyle {
				encoded = "SESSIONGUARD_JWT_SHARED_SECRET=" + encoded
			}
			_, err = fmt.Fprintln(out, encoded)
			return err
		},
	}
	root.Flags().BoolVar(&envStyle, "env", false, "print as an environment variable assignment")

	var cost int
	hashCmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(in).ReadString('\n')
			if err != nil && err != io.EOF {
				return err
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return fmt.Errorf("empty password")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(hash))
			return err
		},
	}
	hashCmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	root.AddCommand(hashCmd)
	return root
}
