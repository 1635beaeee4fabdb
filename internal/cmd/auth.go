package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventify/internal/domain"
	"github.com/felixgeelhaar/eventify/internal/ux"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Eventify session",
	Long: `Log in, sign up, log out and inspect the current session.

The session token is persisted by the configured backend (session.backend):
a file under ~/.eventify, optionally sealed with session.passphrase, a redis
key, or memory only.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	Long: `Exchange credentials for a session token.

Examples:
  eventify auth login --email ann@eventify.dev
  printf 'secret\n' | eventify auth login --email ann@eventify.dev`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and log in",
	Args:  cobra.NoArgs,
	RunE:  runAuthSignup,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is logged in",
	Long:  `Verify the stored token against the API and show the logged in profile.`,
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var (
	authEmail string
	authName  string
)

func init() {
	authLoginCmd.Flags().StringVar(&authEmail, "email", "", "account email (prompted when omitted)")
	authSignupCmd.Flags().StringVar(&authEmail, "email", "", "account email (prompted when omitted)")
	authSignupCmd.Flags().StringVar(&authName, "name", "", "display name (prompted when omitted)")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authSignupCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)

	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	email := authEmail
	if email == "" {
		if email, err = promptString(cmd, "Email", ""); err != nil {
			return err
		}
	}
	password, err := promptSecret(cmd, "Password")
	if err != nil {
		return err
	}

	st, err := rt.svc.Login(cmd.Context(), domain.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}
	return rt.render(ux.SessionView{Status: st.Status.String(), User: st.User, Source: rt.store.BackendName()})
}

func runAuthSignup(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	name, email := authName, authEmail
	if name == "" {
		if name, err = promptString(cmd, "Name", ""); err != nil {
			return err
		}
	}
	if email == "" {
		if email, err = promptString(cmd, "Email", ""); err != nil {
			return err
		}
	}
	password, err := promptSecret(cmd, "Password (at least 6 characters)")
	if err != nil {
		return err
	}

	st, err := rt.svc.Signup(cmd.Context(), domain.SignupRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return err
	}
	rt.info("Account created")
	return rt.render(ux.SessionView{Status: st.Status.String(), User: st.User, Source: rt.store.BackendName()})
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.svc.Logout(); err != nil {
		return err
	}
	rt.info("Logged out")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	st := rt.svc.Resolve(cmd.Context())
	return rt.render(ux.SessionView{Status: st.Status.String(), User: st.User, Source: rt.store.BackendName()})
}
