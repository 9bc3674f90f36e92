// =============================================================================
// MO Tree to CSV Converter - Configuration Module
// =============================================================================
//
// This module is responsible for loading the application configuration.
//
// SOURCES (later sources win):
//   1. The YAML configuration file (config.yaml by default)
//   2. Environment variables prefixed with MOTREE_, optionally read from a
//      .env file in the working directory
//   3. Command-line flags (applied by the cmd package)
//
// A missing configuration file is only an error when its path was given
// explicitly; the default config.yaml is optional.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the configuration file read when none is given.
const DefaultConfigPath = "config.yaml"

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "MOTREE_"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// INPUT / OUTPUT
	// =========================================================================

	// Input is a dump file or a directory of dump files.
	Input string `yaml:"input"`

	// OutputDir is the directory the per-type tables are written to.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// ParameterFile is an optional parameter listing (TYPE:ATTR1,ATTR2,...).
	// When set, schema discovery is skipped and only listed types are written.
	ParameterFile string `yaml:"parameter_file"`

	// Formats lists the output formats.
	// Valid values: "csv", "xlsx", "parquet", "sqlite"
	// Default: ["csv"]
	Formats []string `yaml:"formats" validate:"dive,oneof=csv xlsx parquet sqlite"`

	// ListingOutput is where the discovery-only mode writes its listing.
	// Empty means standard output; a .xlsx path writes a workbook.
	ListingOutput string `yaml:"listing_output"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// LogFile is the path to the application log file.
	// Default: "" (standard error)
	LogFile string `yaml:"log_file"`

	// =========================================================================
	// REPORTING
	// =========================================================================

	// WriteSummary writes a processing summary file to the output directory.
	// Default: false
	WriteSummary bool `yaml:"write_summary"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *MainConfig {
	config := &MainConfig{}
	applyMainConfigDefaults(config)
	return config
}

// LoadMainConfig loads the main configuration.
//
// PARAMETERS:
//   - configPath: The path to the configuration file. An empty path means
//     DefaultConfigPath.
//
// RETURNS:
//   - A pointer to the MainConfig struct with environment overrides and
//     defaults applied.
//   - An error if the file cannot be read or parsed, or a value is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	explicit := configPath != "" && configPath != DefaultConfigPath
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// The default configuration file is optional.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnvOverrides(&config); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadEnv reads .env style files into the process environment. Without
// arguments it reads ./.env and ignores its absence. Variables that are
// already set are not overwritten.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// applyEnvOverrides copies MOTREE_* environment variables over file values.
func applyEnvOverrides(config *MainConfig) error {
	if v, ok := lookupEnv("INPUT"); ok {
		config.Input = v
	}
	if v, ok := lookupEnv("OUTPUT_DIR"); ok {
		config.OutputDir = v
	}
	if v, ok := lookupEnv("PARAMETER_FILE"); ok {
		config.ParameterFile = v
	}
	if v, ok := lookupEnv("FORMATS"); ok {
		config.Formats = ParseFormats(v)
	}
	if v, ok := lookupEnv("LISTING_OUTPUT"); ok {
		config.ListingOutput = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		config.LogLevel = v
	}
	if v, ok := lookupEnv("LOG_FILE"); ok {
		config.LogFile = v
	}
	if v, ok := lookupEnv("WRITE_SUMMARY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sWRITE_SUMMARY: %w", EnvPrefix, err)
		}
		config.WriteSummary = b
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if len(config.Formats) == 0 {
		config.Formats = []string{"csv"}
	}
	for i, f := range config.Formats {
		config.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	config.LogLevel = strings.ToLower(config.LogLevel)
}

var validate = validator.New()

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	if err := validate.Struct(config); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			lists := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				lists = append(lists, fmt.Sprintf("%s (%s, got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("validation failed on %s", strings.Join(lists, ", "))
		}
		return err
	}
	return nil
}

// ParseFormats splits a comma-separated format list.
func ParseFormats(s string) []string {
	var formats []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}
