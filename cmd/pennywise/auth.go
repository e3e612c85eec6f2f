package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pennywise-app/pennywise-go/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the hosted backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := hostedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if email, password, err = credentials(cmd, email, password); err != nil {
				return err
			}
			if err := a.client.Auth.Login(cmd.Context(), email, password); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if _, err := a.client.Profile.Ensure(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render("✓ Signed in as "+email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default: $PENNYWISE_PASSWORD or prompt)")
	return cmd
}

func signupCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account on the hosted backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := hostedApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if email, password, err = credentials(cmd, email, password); err != nil {
				return err
			}
			if err := a.client.Auth.SignUp(cmd.Context(), email, password); err != nil {
				return fmt.Errorf("sign up failed: %w", err)
			}
			if a.client.GetSession() == nil {
				fmt.Fprintln(a.out, "Check your inbox to confirm the account, then run 'pennywise login'.")
				return nil
			}
			if _, err := a.client.Profile.Ensure(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render("✓ Account created for "+email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default: $PENNYWISE_PASSWORD or prompt)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.client.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Fprintln(a.out, successStyle.Render("✓ Signed out"))
			return nil
		},
	}
}

// hostedApp builds an app and requires the rest backend
func hostedApp(cmd *cobra.Command) (*app, error) {
	if cfg != nil && cfg.Backend != config.BackendREST {
		return nil, fmt.Errorf("%s backend has no accounts; sign-in is only needed for the rest backend", cfg.Backend)
	}
	return newApp(cmd)
}

// credentials fills email and password from the environment or stdin
func credentials(cmd *cobra.Command, email, password string) (string, string, error) {
	reader := bufio.NewReader(cmd.InOrStdin())
	if email == "" {
		email = os.Getenv("PENNYWISE_EMAIL")
	}
	if email == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Email: ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if password == "" {
		password = os.Getenv("PENNYWISE_PASSWORD")
	}
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			secret, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return "", "", fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimSpace(string(secret))
		} else {
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return "", "", fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimSpace(line)
		}
	}
	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password are required")
	}
	return email, password, nil
}
