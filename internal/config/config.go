package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

type Config struct {
	HTTPPort      string `envconfig:"APP_PORT" default:"8080"`
	HTTPEnabled   bool   `envconfig:"HTTP_ENABLED" default:"true"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DB            DBConfig
	SQLite        SQLiteConfig
	Batch         BatchConfig
	Schedule      ScheduleConfig
	Kafka         KafkaConfig
	MongoDB       MongoDBConfig
	Auth          AuthConfig
	Log           LogConfig
}

type DBConfig struct {
	Host           string `envconfig:"POSTGRES_HOST"     default:"localhost"`
	Port           string `envconfig:"POSTGRES_PORT"     default:"5432"`
	User           string `envconfig:"POSTGRES_USER"     default:"postgres"`
	Password       string `envconfig:"POSTGRES_PASSWORD"`
	DBName         string `envconfig:"POSTGRES_DB"       default:"payments"`
	SSLMode        string `envconfig:"POSTGRES_SSLMODE"  default:"disable"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH"   default:"migrations"`
}

type SQLiteConfig struct {
	Path string `envconfig:"SQLITE_PATH" default:"transfers.db"`
}

type BatchConfig struct {
	DataDir      string `envconfig:"BATCH_DATA_DIR" default:"archivos"`
	InputFile    string `envconfig:"BATCH_INPUT_FILE" default:"transfers.csv"`
	LogDir       string `envconfig:"BATCH_LOG_DIR" default:"archivos/LOG"`
	ChunkSize    int    `envconfig:"BATCH_CHUNK_SIZE" default:"100"`
	Parallelism  int    `envconfig:"BATCH_PARALLELISM" default:"0"`
	Delimiter    string `envconfig:"BATCH_DELIMITER" default:","`
	ReasonColumn bool   `envconfig:"BATCH_REASON_COLUMN" default:"false"`
}

type ScheduleConfig struct {
	Hour      int    `envconfig:"SCHEDULE_HOUR" default:"23"`
	Timezone  string `envconfig:"SCHEDULE_TIMEZONE" default:"America/Santiago"`
	DebugMode bool   `envconfig:"DEBUG_MODE" default:"false"`
}

type KafkaConfig struct {
	Brokers []string      `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string        `envconfig:"KAFKA_TOPIC" default:"transfer-batch-runs"`
	Enabled bool          `envconfig:"KAFKA_ENABLED" default:"false"`
	Timeout time.Duration `envconfig:"KAFKA_TIMEOUT" default:"5s"`
}

type MongoDBConfig struct {
	URI        string        `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	Database   string        `envconfig:"MONGO_DATABASE" default:"transfer_batch"`
	Collection string        `envconfig:"MONGO_COLLECTION" default:"runs"`
	Timeout    time.Duration `envconfig:"MONGO_TIMEOUT" default:"10s"`
	Enabled    bool          `envconfig:"MONGO_ENABLED" default:"false"`
}

type AuthConfig struct {
	OperatorSecret string `envconfig:"OPERATOR_JWT_SECRET"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:"transfer-batch.log"`
}

func NewConfig() (*Config, error) {
	envFile := "config.env"

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("warning: could not load %s, using process environment only: %v", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Batch.ChunkSize < 1 {
		return fmt.Errorf("BATCH_CHUNK_SIZE must be >= 1, got %d", c.Batch.ChunkSize)
	}
	if c.Batch.Parallelism < 0 {
		return fmt.Errorf("BATCH_PARALLELISM must be >= 0, got %d", c.Batch.Parallelism)
	}
	if utf8.RuneCountInString(c.Batch.Delimiter) != 1 {
		return fmt.Errorf("BATCH_DELIMITER must be a single character, got %q", c.Batch.Delimiter)
	}
	if !validDelimiter(c.Batch.DelimiterRune()) {
		return fmt.Errorf("BATCH_DELIMITER cannot be a quote, a line break or an invalid character, got %q", c.Batch.Delimiter)
	}
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		return fmt.Errorf("SCHEDULE_HOUR must be within 0..23, got %d", c.Schedule.Hour)
	}
	if c.Schedule.Timezone == "" {
		return errors.New("SCHEDULE_TIMEZONE must not be empty")
	}
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverSQLite:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// validDelimiter mirrors the separators encoding/csv accepts.
func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

// DelimiterRune returns the configured field separator.
func (b *BatchConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(b.Delimiter)
	return r
}

func (b *BatchConfig) InputPath() string {
	return filepath.Join(b.DataDir, b.InputFile)
}

func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

func (d *DBConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
