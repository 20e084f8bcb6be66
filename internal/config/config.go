// Package config reads the runtime configuration of both binaries from the
// environment. A .env file in the working directory is loaded first when
// present; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"github.com/sakif/notebox/internal/repository/sqldb"
	"github.com/sakif/notebox/internal/storage"
)

// ErrMissingEnv is wrapped by Load errors for unset required variables.
var ErrMissingEnv = errors.New("config: required environment variable not set")

const (
	DefaultServerPort = 4000
	DefaultSitePort   = 6000
)

// Config is everything main needs to wire the application.
type Config struct {
	Port           int
	LogLevel       slog.Level
	JWTSecret      string
	AllowedOrigins []string // empty means any origin
	PublicDir      string
	DB             sqldb.Config
	Storage        storage.Config
}

// Getenv matches os.Getenv; tests pass a map lookup instead.
type Getenv func(key string) string

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. A missing file is not an error; a malformed one is.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: loading %s: %w", p, err)
		}
	}
	return nil
}

// LoadServer reads the API server configuration. JWT_SECRET is required.
func LoadServer(getenv Getenv) (Config, error) {
	cfg, err := loadCommon(getenv, DefaultServerPort)
	if err != nil {
		return Config{}, err
	}

	cfg.JWTSecret = getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("%w: JWT_SECRET", ErrMissingEnv)
	}

	cfg.AllowedOrigins = splitList(getenv("ALLOWED_ORIGINS"))

	cfg.Storage = storage.Config{
		Type:         storage.Type(strings.ToLower(withDefault(getenv("STORAGE_TYPE"), string(storage.TypeLocal)))),
		LocalPath:    withDefault(getenv("UPLOAD_DIR"), "uploads"),
		S3Bucket:     getenv("AWS_S3_BUCKET"),
		S3Region:     withDefault(getenv("AWS_REGION"), "us-east-1"),
		AWSAccessKey: getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey: getenv("AWS_SECRET_ACCESS_KEY"),
	}
	if cfg.Storage.Type == storage.TypeS3 && cfg.Storage.S3Bucket == "" {
		return Config{}, fmt.Errorf("%w: AWS_S3_BUCKET (STORAGE_TYPE=s3)", ErrMissingEnv)
	}

	return cfg, nil
}

// LoadSite reads the static site configuration.
func LoadSite(getenv Getenv) (Config, error) {
	cfg, err := loadCommon(getenv, DefaultSitePort)
	if err != nil {
		return Config{}, err
	}
	cfg.PublicDir = withDefault(getenv("PUBLIC_DIR"), "web/public")
	return cfg, nil
}

func loadCommon(getenv Getenv, defaultPort int) (Config, error) {
	var cfg Config

	cfg.Port = defaultPort
	if s := getenv("PORT"); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("config: invalid PORT %q", s)
		}
		cfg.Port = port
	}

	cfg.LogLevel = slog.LevelInfo
	if s := getenv("LOG_LEVEL"); s != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(s)); err != nil {
			return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q", s)
		}
	}

	db, err := loadDB(getenv)
	if err != nil {
		return Config{}, err
	}
	cfg.DB = db

	return cfg, nil
}

// loadDB picks the driver and builds its DSN. DB_DSN, when set, is used as
// is for mysql and postgres.
func loadDB(getenv Getenv) (sqldb.Config, error) {
	driver := strings.ToLower(withDefault(getenv("DB_DRIVER"), sqldb.DriverSQLite))

	switch driver {
	case sqldb.DriverSQLite:
		return sqldb.Config{Driver: driver, DSN: withDefault(getenv("DB_PATH"), "data/notes.db")}, nil

	case sqldb.DriverMySQL:
		if dsn := getenv("DB_DSN"); dsn != "" {
			return sqldb.Config{Driver: driver, DSN: dsn}, nil
		}
		mc := mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(withDefault(getenv("DB_HOST"), "localhost"), withDefault(getenv("DB_PORT"), "3306"))
		mc.User = withDefault(getenv("DB_USER"), "root")
		mc.Passwd = getenv("DB_PASSWORD")
		mc.DBName = withDefault(getenv("DB_NAME"), "notes")
		mc.ParseTime = true
		return sqldb.Config{Driver: driver, DSN: mc.FormatDSN()}, nil

	case sqldb.DriverPostgres, "postgresql", "pgx":
		if dsn := getenv("DB_DSN"); dsn != "" {
			return sqldb.Config{Driver: sqldb.DriverPostgres, DSN: dsn}, nil
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(withDefault(getenv("DB_USER"), "postgres"), getenv("DB_PASSWORD")),
			Host:     net.JoinHostPort(withDefault(getenv("DB_HOST"), "localhost"), withDefault(getenv("DB_PORT"), "5432")),
			Path:     "/" + withDefault(getenv("DB_NAME"), "notes"),
			RawQuery: url.Values{"sslmode": {withDefault(getenv("DB_SSLMODE"), "disable")}}.Encode(),
		}
		return sqldb.Config{Driver: sqldb.DriverPostgres, DSN: u.String()}, nil

	default:
		return sqldb.Config{}, fmt.Errorf("config: unknown DB_DRIVER %q", driver)
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
