// =============================================================================
// Ledger Normalizer - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration. It
// handles both the main application configuration and the schema data (the
// canonical column lists, manual overrides and file-name rules).
//
// CONFIGURATION SOURCES (later sources win):
//   1. Built-in defaults (applyMainConfigDefaults)
//   2. Main Config (config.yaml): directories, outputs, ledger settings
//   3. Environment variables prefixed with NORMALIZER_ (see EnvOverrides)
//
// SCHEMA DATA:
//   The schema data is an embedded YAML document (schema.yaml). A deployment
//   can replace it with its own file through the `schema_file` setting. It is
//   loaded once at startup and never modified afterwards.
//
// =============================================================================

package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var defaultSchemaYAML []byte

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "NORMALIZER"

// Output formats understood by the writer package.
const (
	FormatCSV    = "csv"
	FormatXLSX   = "xlsx"
	FormatSQLite = "sqlite"
)

// Client matcher strategies understood by the mapping package.
const (
	MatcherFirstToken = "first_token"
	MatcherExact      = "exact"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the directory scanned for raw client workbooks.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir is the directory where the normalized table is written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// ReferenceTable is the path to the reference mapping table
	// (Client Name, Original Column Names, Normalized Column Name).
	// CSV and XLSX are both accepted. A missing file is not an error.
	// Default: "./reference/master_dataframe.csv"
	ReferenceTable string `yaml:"reference_table"`

	// SchemaFile replaces the embedded schema data when set.
	SchemaFile string `yaml:"schema_file"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional log file. Records go to stderr and the file.
	LogFile string `yaml:"log_file"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// CSVSettings configures raw CSV inputs and CSV reference tables.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// Matcher configures how a client key selects reference-table rows.
	Matcher MatcherConfig `yaml:"matcher"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputName is the base name of the output artifacts, without extension.
	// Placeholders: {uuid}, {timestamp}, {date}, {time}.
	// Keep the default for byte-identical reruns.
	// Default: "raw_records_normalized"
	OutputName string `yaml:"output_name"`

	// OutputFormats lists the artifacts to produce: csv, xlsx, sqlite.
	// Default: [csv]
	OutputFormats []string `yaml:"output_formats"`

	// =========================================================================
	// LEDGER SETTINGS
	// =========================================================================

	// Ledger holds the defaults for wide-format ledger transposition.
	Ledger LedgerSettings `yaml:"ledger"`

	// Ledgers lists wide-format sources transposed inline by `normalize`.
	Ledgers []LedgerSource `yaml:"ledgers"`

	// =========================================================================
	// VERIFICATION SETTINGS
	// =========================================================================

	// SumChecks lists source/target column pairs whose totals must survive
	// normalization unchanged.
	SumChecks []SumCheck `yaml:"sum_checks"`
}

// =============================================================================
// NESTED CONFIGURATION STRUCTURES
// =============================================================================

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter is the field separator. Common values: ",", ";", "|", "tab".
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding of the file. Supported: "UTF-8", "Windows-1252", "ISO-8859-1".
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// MatcherConfig selects the client matching strategy for the resolver.
type MatcherConfig struct {
	// Strategy is "first_token" (case-insensitive substring match on the
	// first word of the client key) or "exact" (exact key plus aliases).
	// Default: "first_token"
	Strategy string `yaml:"strategy"`

	// Aliases maps a client key to additional reference-table client names
	// accepted by the exact strategy, tried in order.
	Aliases map[string][]string `yaml:"aliases"`
}

// LedgerSettings describes the layout of a wide-format ledger sheet.
type LedgerSettings struct {
	// Sheet is the worksheet holding the ledger.
	// Default: "P&L with Corp"
	Sheet string `yaml:"sheet"`

	// HeaderRow is the 0-based row holding the date headers.
	HeaderRow int `yaml:"header_row"`

	// StartColumn is the 0-based column of the first date header. Nil when
	// the key is absent, so an explicit 0 survives defaulting.
	// Default: 1
	StartColumn *int `yaml:"start_column"`

	// MinDates is the minimum number of parsed date headers for a valid ledger.
	// Default: 3
	MinDates int `yaml:"min_dates"`

	// ForecastCutoff (YYYY-MM-DD). Dates strictly after it are FORECAST.
	// Default: "2025-06-30"
	ForecastCutoff string `yaml:"forecast_cutoff"`

	// DateLayouts are tried in order after direct parsing fails.
	DateLayouts []string `yaml:"date_layouts"`

	// Entities are the output entities, in emission order.
	Entities []Entity `yaml:"entities"`

	// LocationLabels are the category labels owned by a single entity.
	LocationLabels []LocationLabel `yaml:"location_labels"`

	// TotalLabel is the General-row category compared against the sum of the
	// TotalComponents by the round-trip check.
	// Default: "Total Location Revenue"
	TotalLabel string `yaml:"total_label"`

	// TotalComponents are the location labels that add up to TotalLabel.
	// Corporate revenue is not part of the location total.
	// Default: Okotoks, Barlow NE and Eastpoint SE revenue
	TotalComponents []string `yaml:"total_components"`

	// OutputSuffix is appended to the client name for the transposed workbook.
	// Default: " Raw Data"
	OutputSuffix string `yaml:"output_suffix"`
}

// Entity is one output entity of the transposer.
type Entity struct {
	// Key identifies the entity in LocationLabels.
	Key string `yaml:"key"`

	// Name is the value written to the Location column.
	Name string `yaml:"name"`
}

// LocationLabel ties a category label to the entity that owns it.
type LocationLabel struct {
	Label  string `yaml:"label"`
	Entity string `yaml:"entity"`
}

// LedgerSource is a wide-format workbook transposed as part of a run.
type LedgerSource struct {
	// File is the workbook path.
	File string `yaml:"file"`

	// Client is the client name stamped on the transposed records.
	Client string `yaml:"client"`

	// Sheet overrides LedgerSettings.Sheet for this source.
	Sheet string `yaml:"sheet,omitempty"`
}

// SumCheck asks the validator to compare a source column total with the
// corresponding canonical column total for one client.
type SumCheck struct {
	Client    string `yaml:"client"`
	Original  string `yaml:"original"`
	Canonical string `yaml:"canonical"`
}

// EnvOverrides are read from NORMALIZER_* environment variables.
type EnvOverrides struct {
	InputDir       string   `envconfig:"INPUT_DIR"`
	OutputDir      string   `envconfig:"OUTPUT_DIR"`
	ReferenceTable string   `envconfig:"REFERENCE_TABLE"`
	SchemaFile     string   `envconfig:"SCHEMA_FILE"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	LogFormat      string   `envconfig:"LOG_FORMAT"`
	LogFile        string   `envconfig:"LOG_FILE"`
	OutputFormats  []string `envconfig:"OUTPUT_FORMATS"`
	Matcher        string   `envconfig:"MATCHER"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseMainConfig(data)
}

// ParseMainConfig parses a YAML document into a MainConfig, applying defaults
// and environment overrides before validation.
func ParseMainConfig(data []byte) (*MainConfig, error) {
	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := ApplyEnv(&config); err != nil {
		return nil, err
	}

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no config file exists.
func Default() (*MainConfig, error) {
	return ParseMainConfig(nil)
}

// ApplyEnv overlays NORMALIZER_* environment variables onto the config.
// Only variables that are set replace file values.
func ApplyEnv(config *MainConfig) error {
	var env EnvOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to load config from env: %w", err)
	}

	setIfNotEmpty(&config.InputDir, env.InputDir)
	setIfNotEmpty(&config.OutputDir, env.OutputDir)
	setIfNotEmpty(&config.ReferenceTable, env.ReferenceTable)
	setIfNotEmpty(&config.SchemaFile, env.SchemaFile)
	setIfNotEmpty(&config.LogLevel, env.LogLevel)
	setIfNotEmpty(&config.LogFormat, env.LogFormat)
	setIfNotEmpty(&config.LogFile, env.LogFile)
	setIfNotEmpty(&config.Matcher.Strategy, env.Matcher)
	if len(env.OutputFormats) > 0 {
		config.OutputFormats = env.OutputFormats
	}

	return nil
}

func setIfNotEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.ReferenceTable == "" {
		config.ReferenceTable = "./reference/master_dataframe.csv"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.OutputName == "" {
		config.OutputName = "raw_records_normalized"
	}
	if len(config.OutputFormats) == 0 {
		config.OutputFormats = []string{FormatCSV}
	}

	// CSV settings defaults.
	if config.CSVSettings.Delimiter == "" {
		config.CSVSettings.Delimiter = ","
	}
	if config.CSVSettings.Encoding == "" {
		config.CSVSettings.Encoding = "UTF-8"
	}

	if config.Matcher.Strategy == "" {
		config.Matcher.Strategy = MatcherFirstToken
	}

	applyLedgerDefaults(&config.Ledger)
}

// applyLedgerDefaults fills the ledger layout used by the car wash P&L exports.
func applyLedgerDefaults(ledger *LedgerSettings) {
	if ledger.Sheet == "" {
		ledger.Sheet = "P&L with Corp"
	}
	if ledger.StartColumn == nil {
		start := defaultStartColumn
		ledger.StartColumn = &start
	}
	if ledger.MinDates == 0 {
		ledger.MinDates = 3
	}
	if ledger.ForecastCutoff == "" {
		ledger.ForecastCutoff = "2025-06-30"
	}
	if len(ledger.DateLayouts) == 0 {
		ledger.DateLayouts = []string{"Jan-06", "January 2006", "1/2006", "2006-01", "2006-01-02"}
	}
	if len(ledger.Entities) == 0 {
		ledger.Entities = []Entity{
			{Key: "Okotoks", Name: "Okotoks"},
			{Key: "Barlow NE", Name: "Barlow NE"},
			{Key: "Eastpoint SE", Name: "Eastpoint SE"},
			{Key: "Corp", Name: "Corporate"},
			{Key: "General", Name: "General"},
		}
	}
	if len(ledger.LocationLabels) == 0 {
		ledger.LocationLabels = []LocationLabel{
			{Label: "Okotoks Revenue", Entity: "Okotoks"},
			{Label: "Barlow NE Revenue", Entity: "Barlow NE"},
			{Label: "Eastpoint SE Revenue", Entity: "Eastpoint SE"},
			{Label: "Corp Revenue", Entity: "Corp"},
		}
	}
	if ledger.TotalLabel == "" {
		ledger.TotalLabel = "Total Location Revenue"
	}
	if len(ledger.TotalComponents) == 0 {
		ledger.TotalComponents = []string{"Okotoks Revenue", "Barlow NE Revenue", "Eastpoint SE Revenue"}
	}
	if ledger.OutputSuffix == "" {
		ledger.OutputSuffix = " Raw Data"
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	for _, format := range config.OutputFormats {
		switch strings.ToLower(format) {
		case FormatCSV, FormatXLSX, FormatSQLite:
		default:
			return fmt.Errorf("unknown output format %q", format)
		}
	}

	switch config.Matcher.Strategy {
	case MatcherFirstToken, MatcherExact:
	default:
		return fmt.Errorf("unknown matcher strategy %q", config.Matcher.Strategy)
	}

	if _, err := config.Ledger.Cutoff(); err != nil {
		return err
	}
	if config.Ledger.FirstDateColumn() < 0 {
		return fmt.Errorf("ledger.start_column must not be negative")
	}
	if config.Ledger.MinDates < 1 {
		return fmt.Errorf("ledger.min_dates must be at least 1")
	}

	hasGeneral := false
	for _, entity := range config.Ledger.Entities {
		if entity.Key == GeneralEntity {
			hasGeneral = true
		}
	}
	if !hasGeneral {
		return fmt.Errorf("ledger.entities must include the %q entity", GeneralEntity)
	}

	for i, source := range config.Ledgers {
		if source.File == "" || source.Client == "" {
			return fmt.Errorf("ledgers[%d]: file and client are required", i)
		}
	}

	return nil
}

// GeneralEntity receives every category that is not location-specific.
const GeneralEntity = "General"

const defaultStartColumn = 1

// FirstDateColumn returns StartColumn, or the default when it was never set.
func (l LedgerSettings) FirstDateColumn() int {
	if l.StartColumn == nil {
		return defaultStartColumn
	}
	return *l.StartColumn
}

// Cutoff parses ForecastCutoff.
func (l LedgerSettings) Cutoff() (time.Time, error) {
	cutoff, err := time.Parse("2006-01-02", l.ForecastCutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ledger.forecast_cutoff %q: %w", l.ForecastCutoff, err)
	}
	return cutoff, nil
}

// EnsureDirectories creates the input and output directories if they don't exist.
func (c *MainConfig) EnsureDirectories() error {
	for _, dir := range []string{c.InputDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
