package app

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/lumea/internal/extract"
	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
)

// EnvPrefix prefixes every lumea environment variable.
const EnvPrefix = "LUMEA"

// Config holds the application configuration loaded from flags,
// environment variables, .env files and ~/.lumea.yaml.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string `validate:"omitempty,oneof=table json yaml"`

	// Config file
	ConfigFile string

	// Destination and staging
	DBPath     string `validate:"required"`
	StagingDir string `validate:"required"`

	// Sources; an empty setting leaves the source to its last snapshot
	APIURL          string `validate:"omitempty,url"`
	MongoURI        string
	MongoDatabase   string `validate:"required_with=MongoURI"`
	MongoCollection string `validate:"required_with=MongoURI"`
	StagingDB       string
	FlatFilePath    string
	ScrapeURL       string `validate:"omitempty,url"`

	// Reconciliation
	AuthoritiesFile string
	Precision       int           `validate:"gte=0,lte=9"`
	Provenance      bool          // write provenance.yaml, raw names included
	Timeout         time.Duration `validate:"gte=0"`

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (LUMEA_ prefix)
// 3. .env files
// 4. Config file (~/.lumea.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".lumea")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && v.GetString("config") != "" {
			return nil, errors.NewConfigError("config", "cannot read "+v.GetString("config"), err)
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color") || os.Getenv("NO_COLOR") != "",
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		DBPath:     v.GetString("db_path"),
		StagingDir: v.GetString("staging_dir"),

		APIURL:          v.GetString("api_url"),
		MongoURI:        v.GetString("mongo_uri"),
		MongoDatabase:   v.GetString("mongo_database"),
		MongoCollection: v.GetString("mongo_collection"),
		StagingDB:       v.GetString("staging_db"),
		FlatFilePath:    v.GetString("flatfile_path"),
		ScrapeURL:       v.GetString("scrape_url"),

		AuthoritiesFile: v.GetString("authorities_file"),
		Precision:       v.GetInt("precision"),
		Provenance:      v.GetBool("provenance"),
		Timeout:         v.GetDuration("timeout"),

		// Logging keeps the unprefixed names shared with other tools
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", constants.DefaultDBPath)
	v.SetDefault("staging_dir", constants.DefaultStagingDir)
	v.SetDefault("api_url", extract.CatalogAPIURL)
	v.SetDefault("precision", constants.DefaultPrecision)
}

// Validate checks the configuration with struct tags.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &errors.ValidationError{
			Field:   fe.Field(),
			Value:   fe.Value(),
			Message: "failed on " + fe.Tag() + " rule",
		}
	}
	return errors.NewConfigError("config", err.Error(), err)
}

// UpdateFromFlags applies the logging shortcuts parsed by cobra.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local is read first; godotenv never overrides a variable already set.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
