package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/dashgate/internal/apiclient"
	"github.com/florianilch/dashgate/internal/app"
	"github.com/florianilch/dashgate/internal/observability"
	"github.com/florianilch/dashgate/internal/tokenstore"
	"github.com/florianilch/dashgate/internal/web"
)

func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "auth--storage",
			Usage: "token storage (file|env|keyring)",
			Value: string(app.DefaultConfigAuthStorage),
		},
		&cli.StringFlag{
			Name:  "auth--file",
			Usage: "token file for file storage",
		},
		&cli.StringFlag{
			Name:  "auth--env-key",
			Usage: "environment variable for env storage",
		},
		&cli.StringFlag{
			Name:  "auth--keyring-user",
			Usage: "keyring user for keyring storage",
		},
	}
}

// session bundles what every client-side command needs.
type session struct {
	cfg   *app.Config
	store tokenstore.TokenStore
}

func openSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	cfg, err := loadCommandConfig(cmd)
	if err != nil {
		return nil, err
	}

	// Client commands always log to the console; stdout is reserved for results
	if _, err := observability.Instrument(ctx, observability.Options{
		Level:  cfg.LogLevel,
		Format: string(cfg.LogFormat),
		Writer: cmd.Root().ErrWriter,
	}); err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	return &session{cfg: cfg, store: store}, nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and store the session token",
		Flags: append(clientFlags(),
			&cli.StringFlag{
				Name:  "email",
				Usage: "account email (prompted when omitted)",
			},
		),
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.Root().Reader)
	errOut := cmd.Root().ErrWriter

	email := cmd.String("email")
	if email == "" {
		fmt.Fprint(errOut, "Email: ")
		if email, err = readLine(in); err != nil {
			return fmt.Errorf("reading email: %w", err)
		}
	}

	fmt.Fprint(errOut, "Password: ")
	password, err := readPassword(cmd.Root().Reader, in)
	fmt.Fprintln(errOut)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	body := web.SignInRequest{Email: email, Password: password}
	if err := validator.New().Struct(body); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	// Sign-in runs without a session; the stored token is only replaced on success
	client, err := app.NewClient(s.cfg, tokenstore.NewMemoryStore(""), nil)
	if err != nil {
		return err
	}

	var resp web.SessionResponse
	if err := client.Post(ctx, "/sign_in", body, &resp); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}
	if resp.Token == "" {
		return errors.New("sign-in failed: backend returned no token")
	}

	if err := s.store.Write(ctx, resp.Token); err != nil {
		return fmt.Errorf("storing session token: %w", err)
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "Signed in as %s\n", email)
	return err
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored session token",
		Flags: clientFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			if err := s.store.Clear(ctx); err != nil {
				if errors.Is(err, tokenstore.ErrReadOnly) {
					return fmt.Errorf("%w: unset %s instead", err, s.cfg.Auth.EnvKey)
				}
				return fmt.Errorf("clearing session token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, "Signed out")
			return err
		},
	}
}

func callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "issue an authenticated backend call and print the JSON response",
		ArgsUsage: "METHOD PATH",
		Flags: append(clientFlags(),
			&cli.StringFlag{
				Name:  "data",
				Usage: "JSON request body",
			},
		),
		Action: callAction,
	}
}

func callAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("usage: dashgate call METHOD PATH")
	}
	method := strings.ToUpper(cmd.Args().Get(0))
	path := cmd.Args().Get(1)

	var body any
	if data := cmd.String("data"); data != "" {
		if !json.Valid([]byte(data)) {
			return errors.New("--data is not valid JSON")
		}
		body = json.RawMessage(data)
	}

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}

	errOut := cmd.Root().ErrWriter
	nav := apiclient.NavigatorFunc(func(_ context.Context, signInPath string) {
		fmt.Fprintf(errOut, "Session expired. Run `dashgate login` to sign in again (%s).\n", signInPath)
	})

	client, err := app.NewClient(s.cfg, s.store, nav)
	if err != nil {
		return err
	}

	var out json.RawMessage
	if err := client.Do(ctx, method, path, body, &out); err != nil {
		return err
	}

	return printJSON(cmd.Root().Writer, out)
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "show whether a session token is stored and what it claims",
		Flags: clientFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			return describeToken(ctx, cmd.Root().Writer, s.store, time.Now())
		},
	}
}

// describeToken reports on the stored token without printing it. Claims are
// decoded without verification; the gateway itself never inspects them.
func describeToken(ctx context.Context, w io.Writer, store tokenstore.TokenStore, now time.Time) error {
	token, err := store.Read(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		_, err = fmt.Fprintln(w, "No session token stored")
		return err
	}
	if err != nil {
		return fmt.Errorf("reading session token: %w", err)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		_, err = fmt.Fprintln(w, "Session token stored (opaque)")
		return err
	}

	fmt.Fprintln(w, "Session token stored (JWT, unverified)")
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		state := "valid"
		if exp.Before(now) {
			state = "expired"
		}
		fmt.Fprintf(w, "Expires: %s (%s)\n", exp.UTC().Format(time.RFC3339), state)
	}

	out, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encoding claims: %w", err)
	}
	return printJSON(w, out)
}

func printJSON(w io.Writer, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		// Not JSON after all; print as received
		buf.Reset()
		buf.Write(raw)
	}
	_, err := fmt.Fprintln(w, buf.String())
	return err
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads without echo from a terminal, or a plain line otherwise.
func readPassword(src io.Reader, in *bufio.Reader) (string, error) {
	if f, ok := src.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		return string(password), err
	}
	return readLine(in)
}
