// =============================================================================
// Freight Billing Reconciler - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and the optional
// per-carrier profiles.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global application settings
//   2. Carrier Profiles (carriers/*.yaml): Per-carrier file quirks
//
// LAYERING:
//   The CLI binds the main config through viper, so every key can also come
//   from a FREIGHTBILL_* environment variable or a flag. LoadMainConfig reads
//   the YAML file directly and is what tests and library callers use.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendXLSX     = "xlsx"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// DataDir holds the persisted tables (xlsx backend) and the commit journal.
	// Default: "./data"
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// InputDir is the folder scanned by "freightbill scan" when no folder has
	// been saved in the settings table.
	// Default: "./input"
	InputDir string `yaml:"input_dir" mapstructure:"input_dir"`

	// ArchiveDir receives scanned files after a successful ingestion when
	// ArchiveOnSuccess is set.
	// Default: "./input_archive"
	ArchiveDir string `yaml:"archive_dir" mapstructure:"archive_dir"`

	// OutputDir is where exports, backups and invoices are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`

	// ProfilesDir contains the per-carrier profile files.
	// Default: "./carriers"
	ProfilesDir string `yaml:"profiles_dir" mapstructure:"profiles_dir"`

	// ArchiveOnSuccess moves scanned files to ArchiveDir once ingested.
	ArchiveOnSuccess bool `yaml:"archive_on_success" mapstructure:"archive_on_success"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	// =========================================================================
	// INGESTION SETTINGS
	// =========================================================================

	// SynonymsFile replaces the built-in column synonym table when set.
	SynonymsFile string `yaml:"synonyms_file" mapstructure:"synonyms_file"`

	// CSV holds the default reader settings for CSV files.
	CSV CSVSettings `yaml:"csv" mapstructure:"csv"`

	// MaxFileMB bounds the size of a single input file.
	// Default: 50
	MaxFileMB int `yaml:"max_file_mb" mapstructure:"max_file_mb"`

	// ChunkRows is how many rows are read between cancellation checks.
	// Default: 10000
	ChunkRows int `yaml:"chunk_rows" mapstructure:"chunk_rows"`

	// IngestTimeout bounds the time spent reading and committing one file.
	// Default: 5m
	IngestTimeout time.Duration `yaml:"ingest_timeout" mapstructure:"ingest_timeout"`

	// =========================================================================
	// STORAGE SETTINGS
	// =========================================================================

	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of "xlsx", "postgres" or "memory".
	// Default: "xlsx"
	Backend string `yaml:"backend" mapstructure:"backend"`

	// DSN is the PostgreSQL connection string. DATABASE_URL is used when empty.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Common values: ",", "|", "\t", ";"
	// Default: ","
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`

	// HeaderRows is the number of header rows at the top of the file.
	// Multi-row headers are joined with a space.
	// Default: 1
	HeaderRows int `yaml:"header_rows" mapstructure:"header_rows"`

	// DataStartRow is the 1-based row where data begins.
	// Default: HeaderRows + 1
	DataStartRow int `yaml:"data_start_row" mapstructure:"data_start_row"`

	// Encoding is the character encoding of the file.
	// Supported: "UTF-8", "Windows-1252", "ISO-8859-1"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// =============================================================================
// CARRIER PROFILES
// =============================================================================

// CarrierProfile describes how one carrier's files differ from the defaults.
// Profiles are optional; a carrier without one uses MainConfig.CSV and the
// synonym table alone.
type CarrierProfile struct {
	// Carrier is matched case-insensitively against the ingestion carrier.
	Carrier string `yaml:"carrier"`

	// CSVSettings overrides MainConfig.CSV for this carrier. Zero fields
	// inherit the main setting.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// Sheet selects the XLSX sheet to read. Empty means the first sheet.
	Sheet string `yaml:"sheet"`

	// ColumnOverrides maps raw headers to canonical fields and always wins
	// over synonym matching.
	//
	// Example:
	//   column_overrides:
	//     "Acct Name": client
	//     "Net Charge": cost
	ColumnOverrides map[string]string `yaml:"column_overrides"`

	// ValueRules clean raw cell values before standardization, keyed by raw
	// header. Rules run in order.
	//
	// Example:
	//   value_rules:
	//     - column: "Acct Name"
	//       actions:
	//         - type: lookup
	//           lookup_table: {"ACME INC": "Acme"}
	ValueRules []ValueRule `yaml:"value_rules"`
}

// ValueRule lists the actions applied to one raw column.
type ValueRule struct {
	Column  string        `yaml:"column"`
	Actions []ValueAction `yaml:"actions"`
}

// ValueAction is a single cleanup step.
//
// Supported types: trim, uppercase, lowercase, title_case, prepend_string,
// append_string, replace, regex_replace, remove_leading_zeros, extract_digits,
// normalize_whitespace, lookup, lookup_with_default, if_empty_use_default,
// if_empty_use_field.
type ValueAction struct {
	Type        string            `yaml:"type"`
	Value       string            `yaml:"value"`
	Find        string            `yaml:"find"`
	LookupTable map[string]string `yaml:"lookup_table"`
}

// Profiles indexes carrier profiles by lowercased carrier name.
type Profiles map[string]*CarrierProfile

// Lookup returns the profile for a carrier, or nil.
func (p Profiles) Lookup(carrier string) *CarrierProfile {
	if p == nil {
		return nil
	}
	return p[strings.ToLower(strings.TrimSpace(carrier))]
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	cfg := &MainConfig{}
	applyMainConfigDefaults(cfg)
	return cfg
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the config.yaml file.
//
// RETURNS:
//   - A pointer to the MainConfig struct with defaults applied.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults registers every default with a viper instance so that keys
// missing from the file and the environment still resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("input_dir", d.InputDir)
	v.SetDefault("archive_dir", d.ArchiveDir)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("profiles_dir", d.ProfilesDir)
	v.SetDefault("archive_on_success", d.ArchiveOnSuccess)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("synonyms_file", d.SynonymsFile)
	v.SetDefault("csv.delimiter", d.CSV.Delimiter)
	v.SetDefault("csv.header_rows", d.CSV.HeaderRows)
	v.SetDefault("csv.data_start_row", d.CSV.DataStartRow)
	v.SetDefault("csv.encoding", d.CSV.Encoding)
	v.SetDefault("max_file_mb", d.MaxFileMB)
	v.SetDefault("chunk_rows", d.ChunkRows)
	v.SetDefault("ingest_timeout", d.IngestTimeout)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.dsn", d.Storage.DSN)
}

// FromViper decodes a fully bound viper instance into a MainConfig.
func FromViper(v *viper.Viper) (*MainConfig, error) {
	var config MainConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration fields.
func applyMainConfigDefaults(config *MainConfig) {
	if config.DataDir == "" {
		config.DataDir = "./data"
	}
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.ArchiveDir == "" {
		config.ArchiveDir = "./input_archive"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.ProfilesDir == "" {
		config.ProfilesDir = "./carriers"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.MaxFileMB == 0 {
		config.MaxFileMB = 50
	}
	if config.ChunkRows == 0 {
		config.ChunkRows = 10000
	}
	if config.IngestTimeout == 0 {
		config.IngestTimeout = 5 * time.Minute
	}
	if config.Storage.Backend == "" {
		config.Storage.Backend = BackendXLSX
	}
	if config.Storage.DSN == "" {
		config.Storage.DSN = os.Getenv("DATABASE_URL")
	}
	applyCSVDefaults(&config.CSV)
}

func applyCSVDefaults(s *CSVSettings) {
	if s.Delimiter == "" {
		s.Delimiter = ","
	}
	if s.HeaderRows == 0 {
		s.HeaderRows = 1
	}
	if s.DataStartRow == 0 {
		s.DataStartRow = s.HeaderRows + 1
	}
	if s.Encoding == "" {
		s.Encoding = "UTF-8"
	}
}

// Validate checks value ranges. It does not touch the filesystem.
func Validate(config *MainConfig) error {
	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q must be one of debug, info, warn, error", config.LogLevel)
	}

	switch config.Storage.Backend {
	case BackendXLSX, BackendMemory:
	case BackendPostgres:
		if config.Storage.DSN == "" {
			return fmt.Errorf("storage.backend is postgres but neither storage.dsn nor DATABASE_URL is set")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", config.Storage.Backend)
	}

	if config.MaxFileMB < 0 {
		return fmt.Errorf("max_file_mb must not be negative")
	}
	if config.ChunkRows < 0 {
		return fmt.Errorf("chunk_rows must not be negative")
	}
	if config.IngestTimeout < 0 {
		return fmt.Errorf("ingest_timeout must not be negative")
	}
	if config.CSV.HeaderRows < 1 {
		return fmt.Errorf("csv.header_rows must be at least 1")
	}
	if config.CSV.DataStartRow <= config.CSV.HeaderRows {
		return fmt.Errorf("csv.data_start_row must come after the header rows")
	}
	return nil
}

// EnsureDirs creates the directories the application writes to.
func EnsureDirs(config *MainConfig) error {
	dirs := []string{config.DataDir, config.OutputDir}
	if config.ArchiveOnSuccess {
		dirs = append(dirs, config.ArchiveDir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MaxFileBytes returns the file size ceiling in bytes.
func (c *MainConfig) MaxFileBytes() int64 {
	return int64(c.MaxFileMB) << 20
}

// JournalPath is where the commit journal lives.
func (c *MainConfig) JournalPath() string {
	return filepath.Join(c.DataDir, "commit.journal")
}

// CSVFor merges a carrier profile's CSV settings over the main ones.
func (c *MainConfig) CSVFor(profile *CarrierProfile) CSVSettings {
	s := c.CSV
	if profile == nil {
		return s
	}
	p := profile.CSVSettings
	if p.Delimiter != "" {
		s.Delimiter = p.Delimiter
	}
	if p.HeaderRows != 0 {
		s.HeaderRows = p.HeaderRows
		if p.DataStartRow == 0 {
			s.DataStartRow = p.HeaderRows + 1
		}
	}
	if p.DataStartRow != 0 {
		s.DataStartRow = p.DataStartRow
	}
	if p.Encoding != "" {
		s.Encoding = p.Encoding
	}
	return s
}

// =============================================================================
// PROFILE LOADING
// =============================================================================

// LoadProfiles loads all carrier profiles from a directory. A missing
// directory yields no profiles.
func LoadProfiles(profilesDir string) (Profiles, error) {
	profiles := make(Profiles)

	if _, err := os.Stat(profilesDir); os.IsNotExist(err) {
		return profiles, nil
	}

	files, err := filepath.Glob(filepath.Join(profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		profile, err := loadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		key := strings.ToLower(strings.TrimSpace(profile.Carrier))
		if key == "" {
			key = strings.ToLower(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
			profile.Carrier = key
		}
		if _, dup := profiles[key]; dup {
			return nil, fmt.Errorf("duplicate profile for carrier %q in %s", profile.Carrier, file)
		}
		profiles[key] = profile
	}

	return profiles, nil
}

func loadProfile(filePath string) (*CarrierProfile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile CarrierProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}
	return &profile, nil
}
