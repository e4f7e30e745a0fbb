package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/invoice-extractor/internal/ocr"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort         = 8080
	DefaultHost         = "127.0.0.1"
	DefaultLogLevel     = "info"
	DefaultMaxFileSize  = 25 * 1024 * 1024 // 25MB per invoice
	DefaultFetchTimeout = 30 * time.Second
	DefaultServerName   = "invoice-extractor"

	// EnvPrefix prefixes every environment variable, e.g. INVOICE_PORT.
	EnvPrefix = "INVOICE"
	// EnvFile is loaded from the working directory when present.
	EnvFile = ".env"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// ErrVersionRequested is returned by LoadFromFlags for --version.
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the invoice extractor
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Invoice configuration
	InvoiceDirectory string
	MaxFileSize      int64 // Maximum PDF file size in bytes
	FetchTimeout     time.Duration

	// OCR fallback for scanned invoices
	OCREngine     string
	OCRLanguage   string
	AzureEndpoint string
	AzureKey      string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:             ModeStdio, // Default to stdio mode for MCP compatibility
		Host:             DefaultHost,
		Port:             DefaultPort,
		InvoiceDirectory: currentDir,
		MaxFileSize:      DefaultMaxFileSize,
		FetchTimeout:     DefaultFetchTimeout,
		OCREngine:        ocr.EngineNone,
		OCRLanguage:      ocr.DefaultLanguage,
		Version:          "1.0.0",
		ServerName:       DefaultServerName,
		LogLevel:         DefaultLogLevel,
	}
}

// LoadFromFlags loads .env, environment variables and command line flags,
// in increasing order of precedence, and returns a validated configuration.
func LoadFromFlags() (*Config, error) {
	if err := LoadEnvFile(EnvFile); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.InvoiceDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.InvoiceDirectory); err == nil {
			cfg.InvoiceDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile exports the variables of path without overriding variables
// that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.InvoiceDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("fetchtimeout", cfg.FetchTimeout)
	viper.SetDefault("ocr", cfg.OCREngine)
	viper.SetDefault("ocrlang", cfg.OCRLanguage)
	viper.SetDefault("azureendpoint", cfg.AzureEndpoint)
	viper.SetDefault("azurekey", cfg.AzureKey)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'stdio' for MCP standard I/O, 'server' for the web upload form")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.InvoiceDirectory, "Directory containing invoice PDFs")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Duration("fetchtimeout", cfg.FetchTimeout, "Timeout for downloading invoices by URL")
	pflag.String("ocr", cfg.OCREngine, "OCR engine for scanned pages: "+strings.Join(ocr.Engines(), ", "))
	pflag.String("ocrlang", cfg.OCRLanguage, "OCR language (Tesseract code, e.g. eng, fra)")
	pflag.String("azureendpoint", cfg.AzureEndpoint, "Azure Computer Vision endpoint (ocr=azure)")
	pflag.String("azurekey", cfg.AzureKey, "Azure Computer Vision key (ocr=azure)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "dir", "loglevel", "maxfilesize",
		"fetchtimeout", "ocr", "ocrlang", "azureendpoint", "azurekey",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nInvoice Extractor - pulls reference numbers and amounts out of customs broker invoices\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# MCP over stdio, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/invoices                 "+
			"# MCP over stdio with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server                           # web upload form\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --ocr=tesseract           # web form with OCR for scans\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (also read from %s):\n", EnvFile)
		fmt.Fprintf(os.Stderr, "  INVOICE_MODE          Run mode\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_HOST          Server host\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_PORT          Server port\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_DIR           Invoice directory\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_LOGLEVEL      Log level\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_MAXFILESIZE   Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_FETCHTIMEOUT  Download timeout\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_OCR           OCR engine\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_OCRLANG       OCR language\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_AZUREENDPOINT Azure Computer Vision endpoint\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_AZUREKEY      Azure Computer Vision key\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.InvoiceDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.FetchTimeout = viper.GetDuration("fetchtimeout")
	cfg.OCREngine = strings.ToLower(viper.GetString("ocr"))
	cfg.OCRLanguage = viper.GetString("ocrlang")
	cfg.AzureEndpoint = viper.GetString("azureendpoint")
	cfg.AzureKey = viper.GetString("azurekey")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate invoice directory
	if c.InvoiceDirectory == "" {
		return errors.New("invoice directory cannot be empty")
	}

	// Check if invoice directory exists, create if it doesn't
	if _, err := os.Stat(c.InvoiceDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.InvoiceDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create invoice directory %s: %w", c.InvoiceDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access invoice directory %s: %w", c.InvoiceDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.FetchTimeout <= 0 {
		return errors.New("fetch timeout must be positive")
	}

	// Validate log level
	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	// Validate OCR engine
	if c.OCREngine != "" && !slices.Contains(ocr.Engines(), c.OCREngine) {
		return fmt.Errorf("invalid OCR engine: %s (must be one of: %s)", c.OCREngine, strings.Join(ocr.Engines(), ", "))
	}
	if c.OCREngine == ocr.EngineAzure && (c.AzureEndpoint == "" || c.AzureKey == "") {
		return errors.New("OCR engine 'azure' requires azureendpoint and azurekey")
	}

	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	if level, ok := logLevels[c.LogLevel]; ok {
		return level
	}
	return slog.LevelInfo
}

// OCRSettings returns the OCR engine settings.
func (c *Config) OCRSettings() ocr.Settings {
	return ocr.Settings{
		Engine:        c.OCREngine,
		Language:      c.OCRLanguage,
		AzureEndpoint: c.AzureEndpoint,
		AzureKey:      c.AzureKey,
	}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The Azure
// key is never printed.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, InvoiceDirectory: %s, LogLevel: %s, MaxFileSize: %d, OCR: %s}",
		c.Mode, c.Host, c.Port, c.InvoiceDirectory, c.LogLevel, c.MaxFileSize, c.OCREngine)
}

// IsServerMode returns true if the web form should be served over HTTP
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the MCP server should run over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
