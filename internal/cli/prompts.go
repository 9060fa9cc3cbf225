package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// promptLine prompts for a single line of visible input.
func promptLine(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// promptPassword prompts for a password with hidden input.
func promptPassword(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)

	password, err := term.ReadPassword(syscall.Stdin)

	fmt.Fprintln(os.Stderr) // newline after hidden input

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(password), nil
}
