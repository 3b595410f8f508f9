package main

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/client"
	"github.com/sakif/lifeline/internal/model"
)

func newRegisterCommand(a *app) *cobra.Command {
	var in model.RegisterInput

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := a.remote()
			if err != nil {
				return err
			}
			msg, err := c.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.message("%s", msg)
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "Username (3-32 letters, digits, _ . -)")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address the verification link is sent to")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (8-72 bytes)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify an email address with the token from the mailed link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := a.remote()
			if err != nil {
				return err
			}
			msg, err := c.VerifyEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.message("%s", msg)
		},
	}
}

func newLoginCommand(a *app) *cobra.Command {
	var in model.LoginInput

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in; later commands use the server instead of the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, saved, err := a.remote()
			if err != nil {
				return err
			}
			// A fresh client: a stale saved token must not ride along.
			server := a.resolveServer(saved)
			c := client.New(server)

			user, err := c.Login(cmd.Context(), in)
			if err != nil {
				return err
			}
			if err := a.saveSession(savedSession{Server: server, Token: c.Token(), Username: user.Username}); err != nil {
				return err
			}
			return a.message("Logged in as %s", user.Username)
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the server session and go back to the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, saved, err := a.remote()
			if err != nil {
				return err
			}
			if saved == nil {
				return a.message("Not logged in")
			}
			// An expired session is already gone on the server side.
			if err := c.Logout(cmd.Context()); err != nil && !errors.Is(err, apperror.ErrUnauthorized) {
				a.logger.Warn("server logout failed; removing local session anyway", slog.String("error", err.Error()))
			}
			if err := a.clearSession(); err != nil {
				return err
			}
			return a.message("Logged out")
		},
	}
}

type whoami struct {
	Mode     string `json:"mode"`
	Server   string `json:"server,omitempty"`
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, or that the local cache is in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, saved, err := a.remote()
			if err != nil {
				return err
			}

			out := whoami{Mode: "local"}
			if saved != nil {
				user, err := c.CurrentUser(cmd.Context())
				if err != nil {
					if errors.Is(err, apperror.ErrUnauthorized) {
						return fmt.Errorf("session for %s expired; run lifeline login again", saved.Username)
					}
					return err
				}
				out = whoami{Mode: "server", Server: a.resolveServer(saved), ID: user.ID, Username: user.Username, Email: user.Email}
			}

			return a.render(out, func(w *tabwriter.Writer) {
				if out.Mode == "local" {
					fmt.Fprintf(w, "Not logged in; using local cache in %s\n", a.dataDir)
					return
				}
				fmt.Fprintf(w, "%s <%s> on %s\n", out.Username, out.Email, out.Server)
			})
		},
	}
}
