package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/pkg/crypto"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// passphraseEnv is read when -passphrase is not given.
const passphraseEnv = "XREPLY_EXPORT_PASSPHRASE"

// errNoTerminal is returned by promptPassphrase when stdin cannot hide input.
var errNoTerminal = errors.New("stdin is not a terminal")

// options describe one conversion of a session export file. Prompt, when
// set, is asked for a passphrase the first time one is needed.
type options struct {
	In         string
	Out        string
	Passphrase string
	Encrypt    bool
	Prompt     func() (string, error)
}

// result summarizes the artifact that was read.
type result struct {
	Artifact  *domain.ExportArtifact
	Encrypted bool
	Written   int
}

func main() {
	// Parse flags
	in := flag.String("in", "", "Session export to read (required)")
	out := flag.String("out", "", "Where to write the converted file; summary only when empty")
	passphrase := flag.String("passphrase", "", "Passphrase for encrypted exports (or "+passphraseEnv+")")
	encrypt := flag.Bool("encrypt", false, "Encrypt the output with the passphrase")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xreply-export %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	if *in == "" {
		fmt.Fprintln(os.Stderr, "Error: --in flag is required")
		fmt.Fprintln(os.Stderr, "Usage: xreply-export --in tweet_data_2024-01-01.json.enc --out tweet_data.json")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	opts := options{
		In:         *in,
		Out:        *out,
		Passphrase: *passphrase,
		Encrypt:    *encrypt,
		Prompt:     promptPassphrase,
	}
	if opts.Passphrase == "" {
		opts.Passphrase = os.Getenv(passphraseEnv)
	}

	res, err := convert(opts)
	if err != nil {
		logger.Error("conversion failed", "in", opts.In, "error", err)
		os.Exit(1)
	}

	// Print summary
	a := res.Artifact
	fmt.Println()
	fmt.Println("Session export")
	fmt.Println("--------------")
	fmt.Printf("Exported:  %s\n", a.ExportDate)
	fmt.Printf("Encrypted: %t\n", res.Encrypted)
	fmt.Printf("Mode:      %s\n", a.ExtractionSettings.ExtractionType)
	fmt.Printf("Tweets:    %d\n", len(a.ExtractedTweets))
	fmt.Printf("Comments:  %d\n", len(a.GeneratedComments))
	if opts.Out != "" {
		fmt.Printf("Written:   %s (%d bytes)\n", opts.Out, res.Written)
	}
	fmt.Println()
}

// convert reads opts.In, decrypting it when needed, and writes the artifact
// to opts.Out in plain or encrypted form.
func convert(opts options) (*result, error) {
	data, err := os.ReadFile(opts.In)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	res := &result{Encrypted: crypto.IsEncrypted(data)}
	if res.Encrypted {
		if err := opts.askPassphrase(); err != nil {
			return nil, fmt.Errorf("input is encrypted; set -passphrase or %s: %w", passphraseEnv, err)
		}
		if data, err = crypto.Decrypt(data, opts.Passphrase); err != nil {
			return nil, fmt.Errorf("decrypt input: %w", err)
		}
	}

	artifact, err := domain.ParseExportArtifact(data)
	if err != nil {
		return nil, err
	}
	res.Artifact = artifact

	if opts.Out == "" {
		return res, nil
	}

	out, err := artifact.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	if opts.Encrypt {
		if err := opts.askPassphrase(); err != nil {
			return nil, fmt.Errorf("-encrypt needs a passphrase: %w", err)
		}
		if out, err = crypto.Encrypt(out, opts.Passphrase); err != nil {
			return nil, fmt.Errorf("encrypt output: %w", err)
		}
	}

	if err := os.WriteFile(opts.Out, out, 0600); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	res.Written = len(out)
	return res, nil
}

// askPassphrase fills o.Passphrase from o.Prompt when it is still blank.
func (o *options) askPassphrase() error {
	if strings.TrimSpace(o.Passphrase) != "" {
		return nil
	}
	if o.Prompt == nil {
		return errors.New("no passphrase given")
	}
	p, err := o.Prompt()
	if err != nil {
		return err
	}
	if strings.TrimSpace(p) == "" {
		return errors.New("empty passphrase")
	}
	o.Passphrase = p
	return nil
}

// promptPassphrase reads a passphrase from the terminal without echoing it.
func promptPassphrase() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoTerminal
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(p), nil
}
