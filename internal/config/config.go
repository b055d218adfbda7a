package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  DBDriver selects between the production MySQL
// backend and an embedded SQLite file for single-node installs.
type Config struct {
    Env           string        // application environment (e.g. "dev", "prod")
    Port          string        // HTTP port to listen on
    DBDriver      string        // "mysql" or "sqlite3"
    DBUser        string        // database username
    DBPass        string        // database password (optional)
    DBHost        string        // database host address
    DBPort        string        // database port number
    DBName        string        // database name
    SQLitePath    string        // database file when DBDriver is sqlite3
    DBTimeout     time.Duration // upper bound for a single persistence transaction
    JWTSecret     string        // secret used to verify admin JWTs
    LinkTTLDays   int           // access window granted when work is assigned
    PublicBaseURL string        // prefix for shareable instance links
    RabbitMQURL   string        // broker for submission notifications; empty disables publishing
    ConsumeEvents bool          // run the submission log consumer inside the server
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    cfg := Config{
        Env:           must("APP_ENV"),
        Port:          envStr("APP_PORT", "8080"),
        DBDriver:      envStr("DB_DRIVER", "mysql"),
        DBPass:        os.Getenv("DB_PASS"),
        SQLitePath:    envStr("SQLITE_PATH", "data/workbooks.db"),
        DBTimeout:     envDur("DB_TIMEOUT", 5*time.Second),
        JWTSecret:     must("JWT_SECRET"),
        LinkTTLDays:   envInt("LINK_TTL_DAYS", 30),
        PublicBaseURL: envStr("PUBLIC_BASE_URL", "http://localhost:8080"),
        RabbitMQURL:   rabbitURL(),
        ConsumeEvents: envBool("NOTIFY_CONSUMER_ENABLED", false),
    }
    if cfg.DBDriver == "mysql" {
        cfg.DBUser = must("DB_USER")
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = envStr("DB_PORT", "3306")
        cfg.DBName = must("DB_NAME")
    }
    if cfg.LinkTTLDays < 1 {
        cfg.LinkTTLDays = 30
    }
    return cfg
}

// LinkTTL is the access window as a duration.
func (c Config) LinkTTL() time.Duration {
    return time.Duration(c.LinkTTLDays) * 24 * time.Hour
}

// AccessTokenTTLMin is the admin token lifetime in minutes for the token
// command.
func AccessTokenTTLMin() int {
    if n := envInt("ACCESS_TOKEN_TTL_MIN", 60); n > 0 {
        return n
    }
    return 60
}

func rabbitURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
