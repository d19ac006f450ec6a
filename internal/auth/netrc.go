// Package auth loads download credentials from a .netrc-style login archive,
// falling back to an interactive prompt on first use.
package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/geoflux/insarpipe/internal/domain"
)

// Credentials is a username/password pair for the data archive.
type Credentials struct {
	Username string
	Password string
}

// PromptFunc asks the user for credentials interactively. Injected so tests
// do not read stdin.
type PromptFunc func(machine string) (*Credentials, error)

// Provider resolves credentials once and caches them for the process.
type Provider struct {
	netrcPath string
	machine   string
	prompt    PromptFunc
	logger    *zap.Logger

	cached *Credentials
}

// NewProvider creates a credentials provider. netrcPath may be empty, in which
// case ~/.netrc is used. prompt may be nil to disable the interactive fallback.
func NewProvider(netrcPath, machine string, prompt PromptFunc, logger *zap.Logger) *Provider {
	return &Provider{
		netrcPath: netrcPath,
		machine:   machine,
		prompt:    prompt,
		logger:    logger,
	}
}

// Credentials returns the login for the configured machine. The lookup order
// is: cache, netrc file, interactive prompt. Absence of both surfaces as an
// AuthenticationError before any download proceeds.
func (p *Provider) Credentials() (*Credentials, error) {
	if p.cached != nil {
		return p.cached, nil
	}

	path := p.netrcPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".netrc")
		}
	}

	if path != "" {
		f, err := os.Open(path)
		if err == nil {
			defer f.Close()
			creds, found := parseNetrc(f, p.machine)
			if found {
				p.logger.Debug("Credentials loaded from login archive",
					zap.String("path", path),
					zap.String("machine", p.machine),
				)
				p.cached = creds
				return creds, nil
			}
		}
	}

	if p.prompt == nil {
		return nil, &domain.AuthenticationError{
			Reason: fmt.Sprintf("no entry for %s in login archive and no interactive prompt available", p.machine),
		}
	}

	creds, err := p.prompt(p.machine)
	if err != nil {
		return nil, &domain.AuthenticationError{Reason: err.Error()}
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, &domain.AuthenticationError{Reason: "empty username or password"}
	}
	p.cached = creds
	return creds, nil
}

// parseNetrc scans a netrc token stream for the given machine. A "default"
// entry matches any machine.
func parseNetrc(r io.Reader, machine string) (*Credentials, bool) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	var tokens []string
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}

	var creds Credentials
	matched := false
	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "machine":
			if matched && creds.Username != "" && creds.Password != "" {
				return &creds, true
			}
			matched = false
			creds = Credentials{}
			if i+1 < len(tokens) && tokens[i+1] == machine {
				matched = true
				i++
			}
		case "default":
			if matched && creds.Username != "" && creds.Password != "" {
				return &creds, true
			}
			matched = true
			creds = Credentials{}
		case "login":
			if matched && i+1 < len(tokens) {
				creds.Username = tokens[i+1]
				i++
			}
		case "password":
			if matched && i+1 < len(tokens) {
				creds.Password = tokens[i+1]
				i++
			}
		}
	}

	if matched && creds.Username != "" && creds.Password != "" {
		return &creds, true
	}
	return nil, false
}

// StdinPrompt reads credentials from the terminal. The password is read with
// echo disabled when stdin is a terminal; piped input falls back to a plain
// line read.
func StdinPrompt(machine string) (*Credentials, error) {
	fmt.Fprintf(os.Stderr, "Credentials for %s\n", machine)
	reader := bufio.NewReader(os.Stdin)

	fmt.Fprint(os.Stderr, "Username: ")
	user, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read username: %w", err)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	var pass string
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		pass = string(raw)
	} else {
		pass, err = reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
	}

	return &Credentials{
		Username: strings.TrimSpace(user),
		Password: strings.TrimSpace(pass),
	}, nil
}
