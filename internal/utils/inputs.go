package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PromptYesNo prompts the user for a yes/no response using stdin/stdout.
func PromptYesNo(prompt string) bool {
	return PromptYesNoWithReader(prompt, os.Stdin, os.Stdout)
}

// PromptYesNoWithReader prompts for yes/no with custom reader/writer for testing.
func PromptYesNoWithReader(prompt string, reader io.Reader, writer io.Writer) bool {
	scanner := bufio.NewScanner(reader)

	for {
		_, _ = fmt.Fprintf(writer, "%s (y/n): ", prompt)
		if !scanner.Scan() {
			return false
		}

		input := strings.TrimSpace(strings.ToLower(scanner.Text()))

		switch input {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		// Invalid input, loop continues
	}
}

// ReadLine reads one trimmed line from reader.
func ReadLine(reader io.Reader) (string, error) {
	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(scanner.Text()), nil
}
