package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"prepcal/internal/caldav"
	"prepcal/internal/config"
	"prepcal/internal/extract"
	"prepcal/internal/google"
	"prepcal/internal/pipeline"
	"prepcal/internal/reconcile"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "prepcal",
		Usage: "Mirror FreshPrep delivery notification emails into a calendar.",
		Commands: []*cli.Command{
			authCommand(),
			runCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'default', 'personal'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := "token-" + accountName + ".json"

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the email-to-calendar ingestion process.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run the ingestion cycle once and exit."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be created or updated without making changes."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Run a cycle every N seconds. Overrides --once."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Log.Level)

			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			account, err := google.ResolveAccount(cfg.Google.Account)
			if err != nil {
				return err
			}
			logger.Info("Using Google account.", "account", account)

			mailbox, err := google.NewMailClient(c.Context, logger, cfg.Google.ClientID, cfg.Google.ClientSecret,
				account, cfg.Mail.FromAddress, cfg.Mail.LookbackDays)
			if err != nil {
				return fmt.Errorf("failed to create gmail client: %w", err)
			}

			calendarBackend, err := newCalendarBackend(c, logger, cfg, account)
			if err != nil {
				return err
			}

			extractor := extract.NewExtractor(logger)
			reconciler := reconcile.NewReconciler(logger, calendarBackend, cfg.Calendar.TimeZone, c.Bool("dry-run"))
			p := pipeline.New(logger, mailbox, extractor, reconciler)

			// --watch flag takes precedence
			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for ; true; <-ticker.C {
					if err := p.Run(c.Context); err != nil {
						logger.Error("Ingestion cycle failed", "error", err)
					}
				}
			} else { // --once is the default behavior if --watch is not set
				logger.Info("Running a single ingestion cycle.")
				if err := p.Run(c.Context); err != nil {
					return fmt.Errorf("single ingestion cycle failed: %w", err)
				}
			}

			return nil
		},
	}
}

// newCalendarBackend picks the calendar provider the reconciler writes to.
func newCalendarBackend(c *cli.Context, logger *slog.Logger, cfg *config.Config, account string) (reconcile.Calendar, error) {
	switch cfg.Calendar.Provider {
	case "google":
		backend, err := google.NewCalendarClient(c.Context, logger, cfg.Google.ClientID, cfg.Google.ClientSecret,
			account, cfg.Calendar.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create google calendar client: %w", err)
		}
		return backend, nil
	case "caldav":
		backend, err := caldav.NewClient(logger, cfg.CalDAV.Endpoint, cfg.CalDAV.Username, cfg.CalDAV.Password, cfg.CalDAV.CalendarName)
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", cfg.Calendar.Provider)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
