// Package cli is the optima terminal front end.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/optima-study/optima/internal/auth"
	"github.com/optima-study/optima/internal/client"
	"github.com/optima-study/optima/internal/infrastructure/config"
	"github.com/optima-study/optima/internal/service"
	"github.com/optima-study/optima/internal/store"
)

// Streams are the terminal the commands talk to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// App holds every dependency a command needs. Commands receive it from the
// root command instead of reaching for package globals.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Streams

	Store      *store.SQLiteStore
	Client     *client.Client
	Session    *auth.Session
	Uploads    *service.UploadService
	Library    *service.LibraryService
	Generation *service.GenerationService

	input *bufio.Reader
}

func NewApp(cfg *config.Config, logger *slog.Logger, streams Streams) *App {
	return &App{Config: cfg, Logger: logger, Streams: streams}
}

// Open opens the local store and wires the client, session and services.
// Flags may have changed Config, so this runs once the command line has
// been parsed.
func (a *App) Open() error {
	if a.Store != nil {
		return nil
	}

	db, err := store.NewSQLite(a.Config.DBPath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	a.Store = db

	// ── HTTP client ─────────────────────────────────────────────────
	a.Client = client.New(client.Options{
		BaseURL:       a.Config.APIURL,
		Timeout:       a.Config.Timeout,
		UploadTimeout: a.Config.UploadTimeout,
		Tokens:        db,
		Notifier:      client.NotifierFunc(a.notify),
		Logger:        a.Logger,
	})

	// ── Session & services ──────────────────────────────────────────
	a.Session = auth.NewSession(a.Client, db, a.Logger)
	a.Client.OnUnauthorized(a.Session.Invalidate)

	a.Uploads = service.NewUploadService(a.Client, a.Logger)
	a.Library = service.NewLibraryService(a.Client, db, a.Logger)
	a.Generation = service.NewGenerationService(a.Client, db, a.Logger)
	return nil
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// notify is the client's user-visible notice channel.
func (a *App) notify(err *client.APIError) {
	fmt.Fprintf(a.Err, "! %s\n", err.Message())
}

// Report prints a command failure. API errors were already announced by the
// notifier, so only a detail the notice did not carry is added.
func (a *App) Report(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" && apiErr.Detail != apiErr.Message() {
			fmt.Fprintf(a.Err, "  %s\n", apiErr.Detail)
		}
		return
	}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintf(a.Err, "invalid %s: %s\n", verr.Field, verr.Reason)
		return
	}
	fmt.Fprintf(a.Err, "error: %v\n", err)
}
