package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/existflow/keepsession/internal/api"
	"github.com/existflow/keepsession/internal/model"
	"github.com/existflow/keepsession/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the auth server",
	Long: `Sign in with email and password. The token and profile are stored
locally so later commands start signed in.

Examples:
  keepsession login
  keepsession login --email ada@example.com
  echo "$PASSWORD" | keepsession login --email ada@example.com --password-stdin`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE:  runLogout,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a new account",
	RunE:  runSignup,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Long: `Resolve the stored session and print the signed-in user. A cached
session is shown immediately and verified with the server before exit.`,
	RunE: runWhoami,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the stored token for a fresh one",
	RunE:  runRefresh,
}

var (
	authEmail         string
	authName          string
	authPasswordStdin bool
)

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Account email")
		c.Flags().BoolVar(&authPasswordStdin, "password-stdin", false, "Read the password from stdin")
	}
	signupCmd.Flags().StringVar(&authName, "name", "", "Display name")
}

// prompter reads answers from the command's input
type prompter struct {
	cmd    *cobra.Command
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd, reader: bufio.NewReader(cmd.InOrStdin())}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.cmd.OutOrStdout(), label)
	s, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// password reads without echo when stdin is a terminal
func (p *prompter) password(label string) (string, error) {
	if p.cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(p.cmd.OutOrStdout(), label)
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(p.cmd.OutOrStdout())
		return string(b), err
	}
	s, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) credentials(email string) (string, string, error) {
	var err error
	if email == "" {
		if email, err = p.line("Email: "); err != nil {
			return "", "", err
		}
	}
	pw, err := p.password("Password: ")
	if err != nil {
		return "", "", err
	}
	if email == "" || pw == "" {
		return "", "", fmt.Errorf("email and password are required")
	}
	return email, pw, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	email, password, err := newPrompter(cmd).credentials(authEmail)
	if err != nil {
		return err
	}

	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintln(out, "🔄 Signing in...")
	if err := app.Session.SignIn(cmd.Context(), email, password); err != nil {
		if errors.Is(err, api.ErrServerUnreachable) {
			return fmt.Errorf("server unreachable: %s", app.Session.LoginState().Error)
		}
		return errors.New(app.Session.LoginState().Error)
	}

	st := app.Session.State()
	fmt.Fprintf(out, "✅ Signed in as %s\n", displayName(st.User))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Tokens.Get() == "" {
		fmt.Fprintln(out, "Not signed in.")
		return nil
	}

	app.Session.SignOut()
	fmt.Fprintln(out, "✅ Signed out.")
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := newPrompter(cmd)

	name := authName
	if name == "" && !authPasswordStdin {
		var err error
		if name, err = p.line("Name: "); err != nil {
			return err
		}
	}
	email, password, err := p.credentials(authEmail)
	if err != nil {
		return err
	}
	if !authPasswordStdin {
		confirm, err := p.password("Confirm Password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}

	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintln(out, "🔄 Creating account...")
	resp, err := app.Session.SignUp(cmd.Context(), model.SignupRequest{Email: email, Password: password, Name: name})
	if err != nil {
		return errors.New(app.Session.LoginState().Error)
	}

	fmt.Fprintf(out, "✅ %s (%s)\n", resp.Message, resp.Email)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	st := app.Session.CheckSession(cmd.Context())
	if st.Authenticated() {
		ctx, cancel := context.WithTimeout(cmd.Context(), settleTimeout)
		_ = app.Session.Settle(ctx)
		cancel()
		st = app.Session.State()
	}

	if !st.Authenticated() {
		fmt.Fprintln(out, "Not signed in. Run: keepsession login")
		return nil
	}
	printUser(out, st.User)
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	before := app.Tokens.Get()
	if before == "" {
		fmt.Fprintln(out, "Not signed in. Run: keepsession login")
		return nil
	}

	fmt.Fprintln(out, "🔄 Refreshing token...")
	tok, err := app.Client.Interceptor().Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh failed: %s", api.Message(err))
	}
	if tok == before {
		fmt.Fprintln(out, "Server issued no new token; keeping the current one.")
		return nil
	}
	fmt.Fprintln(out, "✅ Token refreshed.")
	return nil
}

// requireSession resolves the stored session for commands that need a user
func requireSession(cmd *cobra.Command, app *App) (session.State, error) {
	st := app.Session.CheckSession(cmd.Context())
	if !st.Authenticated() {
		return st, fmt.Errorf("not signed in; run: keepsession login")
	}
	return st, nil
}

func displayName(u *model.User) string {
	if u == nil {
		return "unknown user"
	}
	if u.Name != "" {
		return fmt.Sprintf("%s <%s>", u.Name, u.Email)
	}
	return u.Email
}

func printUser(w io.Writer, u *model.User) {
	fmt.Fprintf(w, "👤 %s\n", displayName(u))
	fmt.Fprintf(w, "   ID:      %s\n", u.ID)
	if u.Role != "" {
		fmt.Fprintf(w, "   Role:    %s\n", u.Role)
	}
	if u.Plan != "" {
		fmt.Fprintf(w, "   Plan:    %s\n", u.Plan)
	}
	if u.Company != "" {
		fmt.Fprintf(w, "   Company: %s\n", u.Company)
	}
	if u.Phone != "" {
		fmt.Fprintf(w, "   Phone:   %s\n", u.Phone)
	}
}
