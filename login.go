package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tonimelisma/photosync-go/internal/config"
	"github.com/tonimelisma/photosync-go/internal/identity"
	"github.com/tonimelisma/photosync-go/internal/library"
	"github.com/tonimelisma/photosync-go/internal/remotefs"
	"github.com/tonimelisma/photosync-go/internal/session"
)

// newLoginCmd builds the login command. Login bootstraps the config file, so
// it bypasses the root PersistentPreRunE config load and resolves settings
// itself from flags, environment, and whatever file already exists.
func newLoginCmd() *cobra.Command {
	var (
		flagEmail string
		flagLocal bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the media server",
		Long:  "Authenticates with the media file server, derives the device identity, and stores the session token and server settings for later commands.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, flagEmail, flagLocal)
		},
	}

	cmd.Flags().StringVar(&flagEmail, "email", "", "account email address")
	cmd.Flags().BoolVar(&flagLocal, "local", false, "use a local server instead of a hosted one")

	return cmd
}

func runLogin(cmd *cobra.Command, emailFlag string, local bool) error {
	ctx := cmd.Context()

	env := config.ReadEnvOverrides()

	path := config.DefaultConfigPath()
	if env.ConfigPath != "" {
		path = env.ConfigPath
	}

	if flagConfigPath != "" {
		path = flagConfigPath
	}

	fileCfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	// Fold the flags into the file config before resolving, so the saved
	// file reflects what the user logged in against.
	if local {
		fileCfg.Server.Mode = "local"
	}

	if flagServerHost != "" {
		fileCfg.Server.Host = flagServerHost
	}

	email := firstOf(emailFlag, env.Email, fileCfg.Auth.Email)
	if email == "" {
		email, err = promptLine(cmd, "Email: ")
		if err != nil {
			return err
		}
	}

	if email == "" {
		return errors.New("an email address is required")
	}

	fileCfg.Auth.Email = identity.NormalizeEmail(email)

	// Resolve a candidate config without persisting anything; the file is
	// written only after these settings authenticate successfully.
	cli := config.CLIOverrides{ConfigPath: flagConfigPath, ServerHost: flagServerHost}

	candidate, err := config.ResolveFrom(fileCfg, path, env, cli)
	if err != nil {
		return err
	}

	if candidate.BaseURL() == "" {
		return errors.New("no server configured — pass --server or --local")
	}

	password, err := promptPassword(cmd)
	if err != nil {
		return err
	}

	token, err := remotefs.Login(ctx, candidate.BaseURL(), defaultHTTPClient(), email, password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	if err := config.Save(path, fileCfg); err != nil {
		return err
	}

	// Re-resolve through the normal chain now that the file is in place.
	if err := loadConfig(); err != nil {
		return err
	}

	logger := buildLogger()

	store, err := library.Open(ctx, resolvedCfg.DatabasePath(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	deviceID, err := identity.NewResolver(store, logger).Resolve(ctx, email, password)
	if err != nil {
		return err
	}

	sess := &session.Session{
		Email:   identity.NormalizeEmail(email),
		Token:   token,
		SavedAt: time.Now().UTC(),
	}

	if err := session.Save(resolvedCfg.SessionPath(), sess); err != nil {
		return err
	}

	logger.Debug("logged in",
		"email", sess.Email,
		"device_uuid", deviceID.String(),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", sess.Email)

	return nil
}

// newLogoutCmd builds the logout command.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := session.Delete(resolvedCfg.SessionPath()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")

			return nil
		},
	}
}

// newWhoamiCmd builds the whoami command, showing the current session state
// and the persisted device identity.
func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current login state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sess, err := session.Load(resolvedCfg.SessionPath())
			if errors.Is(err, session.ErrNotLoggedIn) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}

			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Email: %s\n", sess.Email)
			fmt.Fprintf(out, "Server: %s\n", resolvedCfg.BaseURL())

			store, err := library.Open(ctx, resolvedCfg.DatabasePath(), buildLogger())
			if err != nil {
				return err
			}
			defer store.Close()

			deviceID, err := identity.NewResolver(store, nil).Lookup(ctx, sess.Email)
			if err == nil {
				fmt.Fprintf(out, "Device UUID: %s\n", deviceID)
			}

			if exp := sess.ExpiresAt(); !exp.IsZero() {
				state := "valid"
				if sess.Expired(time.Now()) {
					state = "expired"
				}

				fmt.Fprintf(out, "Session: %s (expires %s)\n", state, exp.Local().Format(time.RFC1123))
			} else {
				fmt.Fprintln(out, "Session: valid")
			}

			return nil
		},
	}
}

// promptPassword reads a password without echo when stdin is a terminal,
// falling back to a plain line read for piped input.
func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

		raw, err := term.ReadPassword(fd)

		fmt.Fprintln(cmd.ErrOrStderr())

		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}

		return string(raw), nil
	}

	return promptLine(cmd, "Password: ")
}

// promptLine prints a prompt to stderr and reads one line from the command's
// stdin. Used for scripted input and for the email prompt.
func promptLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)

	reader := bufio.NewReader(cmd.InOrStdin())

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// firstOf returns the first non-empty string.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
