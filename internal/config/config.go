package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config is the full service configuration, populated from environment
// variables. A .env file is loaded by the CLI before parsing.
type Config struct {
	Google   Google   `envPrefix:"GOOGLE_"`
	Mail     Mail     `envPrefix:"MAIL_"`
	Calendar Calendar `envPrefix:"CALENDAR_"`
	CalDAV   CalDAV   `envPrefix:"CALDAV_"`
	Log      Log
}

// Google holds OAuth client settings shared by the Gmail and Calendar clients.
// An empty Account means the single saved token account is discovered at startup.
type Google struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Account      string `env:"ACCOUNT"`
}

// Mail configures which notification emails are fetched.
type Mail struct {
	FromAddress  string `env:"FROM_ADDRESS" envDefault:"hello@freshprep.ca"`
	LookbackDays int    `env:"LOOKBACK_DAYS" envDefault:"2"`
}

// Calendar selects and configures the calendar backend events are written to.
type Calendar struct {
	Provider string `env:"PROVIDER" envDefault:"google"` // "google" or "caldav"
	ID       string `env:"ID" envDefault:"primary"`
	TimeZone string `env:"TIMEZONE" envDefault:"America/Vancouver"`
}

// CalDAV holds credentials for the CalDAV backend. Only read when
// Calendar.Provider is "caldav".
type CalDAV struct {
	Endpoint     string `env:"ENDPOINT" envDefault:"https://caldav.icloud.com/"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	CalendarName string `env:"CALENDAR_NAME"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment config: %w", err)
	}
	return cfg, nil
}
