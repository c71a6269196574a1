package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the connection settings of the report archive.
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
}

// NewDatabaseConfiguration reads the database configuration from the ASKPDF_DB_* environment.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	config := &DatabaseConfiguration{
		Host:     os.Getenv("ASKPDF_DB_HOST"),
		Port:     os.Getenv("ASKPDF_DB_PORT"),
		Database: os.Getenv("ASKPDF_DB_DATABASE"),
		Username: os.Getenv("ASKPDF_DB_USERNAME"),
		Password: os.Getenv("ASKPDF_DB_PASSWORD"),
		Schema:   os.Getenv("ASKPDF_DB_SCHEMA"),
		SSLMode:  os.Getenv("ASKPDF_DB_SSLMODE"),
	}

	if config.Host == "" || config.Port == "" || config.Database == "" || config.Username == "" || config.Password == "" {
		return nil, NewError("database configuration validation", fmt.Errorf("ASKPDF_DB_HOST, ASKPDF_DB_PORT, ASKPDF_DB_DATABASE, ASKPDF_DB_USERNAME and ASKPDF_DB_PASSWORD must be set"))
	}
	if config.Schema == "" {
		config.Schema = "public"
	}
	if config.SSLMode == "" {
		config.SSLMode = "require"
	}

	return config, nil
}

// DatabaseConnectionString returns the postgres connection url.
func (c *DatabaseConfiguration) DatabaseConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:   c.Database,
	}
	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	query.Set("search_path", c.Schema)
	u.RawQuery = query.Encode()
	return u.String()
}

// Database wraps a postgres connection together with its logger.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase connects to the database and panics if it is unreachable.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	if config == nil {
		log.Panic("database configuration is nil")
	}

	db := &Database{
		Name:   name,
		Logger: logger,
	}
	if err := db.Connect(config); err != nil {
		log.Panicf("error connecting to database %s: %v", name, err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host))

	return db
}

// NewTestDatabase connects to the database with a debug logger writing to stdout.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	return NewDatabase("test", config, NewLogger(os.Stdout, slog.LevelDebug))
}

// Connect opens the connection and waits until the database answers.
func (d *Database) Connect(config *DatabaseConfiguration) error {
	instance, err := sql.Open("postgres", config.DatabaseConnectionString())
	if err != nil {
		return NewError("open", err)
	}

	instance.SetMaxOpenConns(10)
	instance.SetMaxIdleConns(5)
	instance.SetConnMaxLifetime(30 * time.Minute)

	var pingErr error
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = instance.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	if pingErr != nil {
		_ = instance.Close()
		return NewError("ping", pingErr)
	}

	d.Instance = instance
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	if d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
