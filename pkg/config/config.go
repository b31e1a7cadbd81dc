// Package config holds the application configuration loaded from the
// environment.
package config

// ClientSecretFile is the default path to the Google OAuth credentials JSON
// file.
const ClientSecretFile = "data/client_secret.json"

// Config is populated from environment variables via koanf. A local .env
// file, when present, is loaded into the environment first.
type Config struct {
	// Writer selects the persistence backend: "postgres" (default) or
	// "jsonfile".
	// Environment variable: LUCRA_WRITER
	Writer string `koanf:"LUCRA_WRITER"`

	// JSONFilePath is the output path for the jsonfile writer.
	// Environment variable: LUCRA_JSON_FILE
	JSONFilePath string `koanf:"LUCRA_JSON_FILE"`

	// PollIntervalSeconds is how often Gmail is polled for new alerts.
	// Environment variable: LUCRA_POLL_INTERVAL
	PollIntervalSeconds int `koanf:"LUCRA_POLL_INTERVAL"`

	// AfterDate restricts the Gmail search to messages after this date, in
	// Gmail query form (e.g. "2024/12/31").
	// Environment variable: LUCRA_AFTER_DATE
	AfterDate string `koanf:"LUCRA_AFTER_DATE"`

	// MaxResults caps how many messages one poll lists. Zero means the
	// Gmail API default.
	// Environment variable: LUCRA_MAX_RESULTS
	MaxResults int64 `koanf:"LUCRA_MAX_RESULTS"`

	// Postgres holds the connection settings for the postgres writer and
	// the currency catalog.
	Postgres PostgresConfig
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}
