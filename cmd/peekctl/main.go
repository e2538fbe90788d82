// Package main provides peekctl, a terminal companion to the peek web client.
// It talks to the same one-time secret service: share creates a secret and
// prints its key, reveal walks the retrieval flow interactively, prompting for
// a passphrase when the service asks for one.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/haukened/peek/internal/backend"
	"github.com/haukened/peek/internal/domain"
	"github.com/haukened/peek/internal/flow"
)

var (
	// Global flags
	backendURL string
	timeout    time.Duration
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "peekctl",
		Short: "peekctl - share and reveal one-time secrets from the terminal",
		Long: `peekctl is a command line client for a one-time secret service.

Secrets are destroyed by the service after a single read; reveal consumes
the secret for everyone else the moment it succeeds.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	shareCmd = &cobra.Command{
		Use:   "share",
		Short: "Create a one-time secret from stdin or a file",
		Long: `Create a one-time secret and print its key.

Examples:
  # Share from stdin
  echo "the launch code" | peekctl share --ttl 1h

  # Share a file with a passphrase
  peekctl share --file id_rsa --ttl 24h --passphrase hunter2

  # Print a full link for a peek web instance
  echo "hi" | peekctl share --link-base https://peek.example.com`,
		Args: cobra.NoArgs,
		RunE: runShare,
	}

	revealCmd = &cobra.Command{
		Use:   "reveal [key-or-link]",
		Short: "Retrieve a one-time secret (consumes it)",
		Long: `Retrieve a one-time secret by key or by full link.

The first request carries no passphrase; if the service asks for one,
peekctl prompts and retries. A successful reveal consumes the secret.`,
		Args: cobra.ExactArgs(1),
		RunE: runReveal,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", envOr("PEEK_BACKEND_URL", "http://localhost:7143"), "secret service base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging to stderr")

	shareCmd.Flags().Duration("ttl", time.Hour, "time until the unopened secret expires")
	shareCmd.Flags().String("file", "", "read the secret from a file instead of stdin")
	shareCmd.Flags().String("passphrase", "", "protect the secret with a passphrase")
	shareCmd.Flags().String("link-base", "", "also print a web link rooted at this peek instance")

	revealCmd.Flags().Bool("raw", false, "print only the secret content, no decoration")

	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(revealCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger() *slog.Logger {
	if verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runShare(cmd *cobra.Command, _ []string) error {
	ttl, _ := cmd.Flags().GetDuration("ttl")
	file, _ := cmd.Flags().GetString("file")
	passphrase, _ := cmd.Flags().GetString("passphrase")
	linkBase, _ := cmd.Flags().GetString("link-base")

	var raw []byte
	var err error
	if file != "" {
		raw, err = os.ReadFile(file)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read secret: %w", err)
	}
	content := strings.TrimRight(string(raw), "\n")
	if content == "" {
		return errors.New("nothing to share: secret is empty")
	}
	if err := domain.ValidateTTL(ttl, domain.MinTTL, domain.MaxTTL); err != nil {
		return fmt.Errorf("ttl %s: %w", ttl, err)
	}

	client := backend.New(backendURL, timeout, newLogger())
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	key, err := client.Create(ctx, content, ttl, passphrase)
	if err != nil {
		return shareError(err)
	}

	fmt.Println(color.GreenString("✓") + " Secret created. It can be viewed exactly once.")
	fmt.Printf("  Key:     %s\n", color.YellowString(key.String()))
	if linkBase != "" {
		link, err := url.JoinPath(linkBase, "secret", key.String())
		if err != nil {
			return fmt.Errorf("link-base: %w", err)
		}
		fmt.Printf("  Link:    %s\n", color.CyanString(link))
	}
	fmt.Printf("  Expires: after %s if never opened\n", ttl)
	if passphrase != "" {
		fmt.Println("  " + color.CyanString("→") + " Send the passphrase over a different channel than the key.")
	}
	return nil
}

// shareError translates create failures into operator-readable messages.
func shareError(err error) error {
	switch {
	case errors.Is(err, backend.ErrTimeout):
		return errors.New("the secret service did not respond in time")
	case errors.Is(err, backend.ErrNoResponse):
		return errors.New("could not reach the secret service at " + backendURL)
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("the secret service rejected the request (status %d)", apiErr.Status)
	}
	return err
}

func runReveal(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetBool("raw")

	key, err := parseKeyArg(args[0])
	if err != nil {
		return fmt.Errorf("%q is not a valid secret key or link", args[0])
	}

	if !raw {
		fmt.Println(color.YellowString("!") + " Revealing consumes the secret; nobody else can view it afterwards.")
	}

	done := make(chan struct{})
	attempt, err := flow.NewAttempt(key, flow.Config{
		Retriever:  backend.New(backendURL, timeout, newLogger()),
		Scheduler:  flow.TimerScheduler{},
		OnRedirect: func() { close(done) },
		Logger:     newLogger(),
	})
	if err != nil {
		return err
	}

	tr, err := attempt.Start(cmd.Context())
	if err != nil {
		return err
	}
	if tr.State == flow.StateAwaitingPassphrase {
		passphrase, perr := promptPassphrase()
		if perr != nil {
			attempt.Cancel()
			return perr
		}
		tr, err = attempt.SubmitPassphrase(cmd.Context(), passphrase)
		if err != nil {
			return err
		}
	}

	switch tr.State {
	case flow.StateRevealed:
		if raw {
			fmt.Println(tr.Outcome.Content)
			return nil
		}
		fmt.Println(color.GreenString("✓") + " Secret revealed. This was the only view.")
		fmt.Println()
		fmt.Println(tr.Outcome.Content)
		return nil
	case flow.StateTerminal:
		if raw {
			return errors.New(tr.Outcome.Message)
		}
		fmt.Println(color.RedString("✗") + " " + tr.Outcome.Message)
		// The flow lingers on terminal outcomes before handing control back.
		<-done
		return errExitFailure
	default:
		return fmt.Errorf("unexpected state %s", tr.State)
	}
}

// errExitFailure signals a terminal outcome already explained to the user.
var errExitFailure = errors.New("secret not revealed")

// parseKeyArg accepts a bare key or a full /secret/{key} link.
func parseKeyArg(arg string) (domain.SecretKey, error) {
	s := strings.TrimSpace(arg)
	if strings.Contains(s, "/") {
		if u, err := url.Parse(s); err == nil && u.Path != "" {
			s = u.Path
		}
		s = strings.TrimSuffix(s, "/")
		if i := strings.LastIndexByte(s, '/'); i >= 0 {
			s = s[i+1:]
		}
	}
	return domain.ParseKey(s)
}

func promptPassphrase() (string, error) {
	fmt.Print(color.CyanString("?") + " This secret is protected. Enter the passphrase: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no passphrase entered")
	}
	passphrase := scanner.Text()
	if passphrase == "" {
		return "", errors.New("no passphrase entered")
	}
	return passphrase, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errExitFailure) {
			fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+err.Error())
		}
		os.Exit(1)
	}
}
