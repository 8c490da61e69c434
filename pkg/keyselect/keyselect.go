// Package keyselect resolves the generative-AI API credential at startup and
// provides the interactive reselection flow used when the remote model
// rejects the key. Authentication failures are never retried automatically;
// recovery always goes through an explicit reselection.
package keyselect

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrAuth tags errors caused by a missing or rejected API credential.
var ErrAuth = errors.New("authentication failure")

// authPatterns are the remote model's known credential-rejection messages.
var authPatterns = []string{
	"An API Key must be set",
	"Requested entity was not found",
	"API key not valid",
	"API_KEY_INVALID",
}

// IsAuthMessage reports whether a diagnostic message from the remote model
// indicates a credential failure.
func IsAuthMessage(msg string) bool {
	for _, p := range authPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Classify wraps err with ErrAuth when its message matches a known
// credential-rejection pattern; otherwise it returns err unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsAuthMessage(err.Error()) {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return err
}

// Resolve returns the API key from the environment. GEMINI_API_KEY wins
// over the legacy API_KEY name.
func Resolve() (string, error) {
	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: no API key set (GEMINI_API_KEY)", ErrAuth)
}

// Selector is the key-reselection side channel invoked on authentication
// failure. Implementations surface an affordance for the user to supply a
// new key.
type Selector interface {
	SelectKey() (string, error)
}

// TerminalSelector prompts for a key on the controlling terminal without
// echoing it.
type TerminalSelector struct{}

// SelectKey reads a replacement API key from the terminal.
func (TerminalSelector) SelectKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("keyselect: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Enter Gemini API key: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("keyselect: read key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", fmt.Errorf("keyselect: empty key")
	}
	return key, nil
}
