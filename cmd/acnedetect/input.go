package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Muhammadazeem-eng/acne-detect/internal/session"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var stdin = bufio.NewReader(os.Stdin)

// promptLine prints prompt to w and reads one trimmed line. A partial line
// before EOF is returned as is.
func promptLine(r *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a value from the terminal without echo.
func promptSecret(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(b), nil
}

// login authenticates c's session. username is prompted for when empty;
// the password is always read without echo.
func login(ctx context.Context, c *apiClient, r *bufio.Reader, w io.Writer, username string) error {
	var err error
	if username == "" {
		if username, err = promptLine(r, w, "Username: "); err != nil {
			return err
		}
	}
	password, err := promptSecret(w, "Password: ")
	if err != nil {
		return err
	}

	var st session.State
	if err := c.call(ctx, "POST", "/login", map[string]string{
		"username": username,
		"password": password,
	}, &st); err != nil {
		return err
	}
	printSuccess("Logged in as %s", st.Username)
	return nil
}

// loggedInClient connects to the server and logs in as username, prompting
// for anything missing.
func loggedInClient(ctx context.Context, username string) (*apiClient, error) {
	c, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	if err := login(ctx, c, stdin, os.Stderr, username); err != nil {
		return nil, err
	}
	return c, nil
}
