package token

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// EnvVar is the environment variable consulted before prompting.
const EnvVar = "CIVITAI_API_TOKEN"

// Resolve returns the bearer token for authenticated downloads. The
// environment variable wins; otherwise, when in is a terminal, the user
// is prompted without echo. Empty input (or a non-interactive stdin)
// means unauthenticated. A failed prompt read aborts the run.
func Resolve(in *os.File, out io.Writer) (string, error) {
	if tok := strings.TrimSpace(os.Getenv(EnvVar)); tok != "" {
		return tok, nil
	}

	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(out, "CivitAI API token (Enter to skip): ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
