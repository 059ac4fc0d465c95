package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jantomson/steelbuckle-sub000/internal/backend"
	"github.com/jantomson/steelbuckle-sub000/internal/config"
	"github.com/jantomson/steelbuckle-sub000/internal/contact"
	"github.com/jantomson/steelbuckle-sub000/internal/document"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/preview"
	"github.com/jantomson/steelbuckle-sub000/internal/store"
	"github.com/jantomson/steelbuckle-sub000/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

type options struct {
	configFile string
	pageID     string
	language   string
	dump       bool
	edit       bool
	contact    bool
}

func main() {
	var showVersion bool
	var opts options
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&opts.configFile, "config", "", "config file (default: ~/.config/steelbuckle/config.yaml)")
	flag.StringVar(&opts.pageID, "page", "", "page to open")
	flag.StringVar(&opts.language, "lang", "", "editing language")
	flag.BoolVar(&opts.dump, "dump", false, "print the resolved page and exit")
	flag.BoolVar(&opts.edit, "edit", false, "enable edit mode regardless of config")
	flag.BoolVar(&opts.contact, "contact-check", false, "screen contact submissions read as JSON from stdin")
	flag.Parse()

	if showVersion {
		fmt.Printf("steelbuckle %s\n", Version)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// Load configuration
	var cfg *config.Config
	var err error
	if opts.configFile != "" {
		cfg, err = config.LoadFile(opts.configFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.pageID != "" {
		cfg.Editor.PageID = opts.pageID
	}
	if opts.language != "" {
		cfg.Editor.Language = opts.language
	}
	if opts.edit {
		cfg.Editor.Privileged = true
	}

	logger, closeLog, err := config.NewLogger(cfg.Logging, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		logger, closeLog, _ = config.NewLogger(config.LoggingConfig{}, Version)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if opts.contact {
		return contactCheck(os.Stdin, os.Stdout, contact.NewGuard(cfg.Contact, logger), time.Now)
	}

	logger.Info("starting steelbuckle", "version", Version, "backend", cfg.Backend.URL)

	if !cfg.IsConfigured() {
		return fmt.Errorf("backend.url is not set")
	}

	storeDir := cfg.Cache.Dir
	if storeDir == "" {
		storeDir = config.DefaultStorePath()
	}
	storage, err := store.Open(storeDir, cfg.Backend.URL)
	if err != nil {
		return fmt.Errorf("failed to open local storage: %w", err)
	}
	defer storage.Close()

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout, logger)
	docOpts := document.Options{
		CacheCapacity: cfg.Cache.Capacity,
		PollInterval:  cfg.Cache.PollInterval,
		FetchTimeout:  cfg.Cache.FetchTimeout,
	}
	newDocument := func() *document.Document {
		return document.New(storage, client, docOpts, logger)
	}

	page, ok := cfg.Page(cfg.Editor.PageID)
	if !ok {
		return fmt.Errorf("unknown page %q", cfg.Editor.PageID)
	}

	if opts.dump || !term.IsTerminal(int(os.Stdout.Fd())) {
		return dump(os.Stdout, newDocument(), page, cfg.Editor.Language, cfg.Cache.FetchTimeout)
	}

	model := tui.NewModel(tui.Config{
		Pages:      cfg.Pages,
		PageID:     page.ID,
		Language:   cfg.Editor.Language,
		Languages:  cfg.Editor.Languages,
		Privileged: cfg.Editor.Privileged,
	}, tui.Deps{
		NewDocument: newDocument,
		Previewer:   preview.NewLauncher(cfg.Preview.Command, cfg.Preview.Args, logger),
		Logger:      logger,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	logger.Info("starting TUI", "page", page.ID, "language", cfg.Editor.Language, "privileged", cfg.Editor.Privileged)

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// dump resolves page once and prints its text and media.
func dump(w io.Writer, doc *document.Document, page domain.Page, lang string, timeout time.Duration) error {
	defer doc.Close()

	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
	defer cancel()

	images := doc.MediaResolver(page)
	defer images.Close()
	texts := doc.TranslationResolver(page.Prefix, lang)
	defer texts.Close()

	for _, done := range []<-chan struct{}{images.Mount(), texts.Mount()} {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("resolving %s: %w", page.ID, ctx.Err())
		}
	}

	fmt.Fprintf(w, "# %s [%s]\n", page.ID, lang)
	for _, k := range page.Text {
		fmt.Fprintf(w, "%s\t%s\n", k, texts.Text(k, k))
	}
	for _, k := range page.MediaKeys() {
		fmt.Fprintf(w, "%s\t%s\n", k, images.ImageURL(k, ""))
	}

	if err := images.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "media: %v\n", err)
	}
	if err := texts.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "text: %v\n", err)
	}
	return nil
}

// contactCheck screens a stream of JSON submissions and prints one verdict
// line per submission. A missing submitted_at means now.
func contactCheck(r io.Reader, w io.Writer, guard *contact.Guard, now func() time.Time) error {
	dec := json.NewDecoder(r)
	for {
		var sub contact.Submission
		if err := dec.Decode(&sub); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading submission: %w", err)
		}
		if sub.SubmittedAt.IsZero() {
			sub.SubmittedAt = now()
		}
		if err := guard.Check(sub); err != nil {
			fmt.Fprintf(w, "rejected\t%s\t%s\n", sub.ClientID, contact.UserMessage(err))
			continue
		}
		fmt.Fprintf(w, "accepted\t%s\n", sub.ClientID)
	}
}
