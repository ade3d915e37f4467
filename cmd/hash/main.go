// Package main prints a bcrypt hash for admin.password_hash. The password is
// taken from the first argument or, when absent, the first line of stdin so it
// does not have to appear in shell history.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ai-navigator/navigator/internal/auth"
)

func main() {
	password, err := readPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

func readPassword() (string, error) {
	if len(os.Args) > 1 {
		return os.Args[1], nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("usage: %s <password> (or pipe it on stdin)", os.Args[0])
	}
	return strings.TrimRight(line, "\r\n"), nil
}
