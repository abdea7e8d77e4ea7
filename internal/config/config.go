// Package config loads bot configuration.
//
// Secrets and resource IDs come from environment variables (a .env file is
// loaded best-effort by the CLI entry point). Tunables live in an optional
// keihi.yml next to the binary or at the path given by KEIHI_CONFIG.
package config

import (
	"fmt"
	"os"
)

// Environment variables read by Load.
const (
	EnvSlackBotToken   = "SLACK_BOT_TOKEN"
	EnvSlackAppToken   = "SLACK_APP_TOKEN"
	EnvGoogleCredsJSON = "GOOGLE_SERVICE_ACCOUNT_JSON"
	EnvGoogleCredsFile = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvSettingsSheetID = "SETTINGS_SPREADSHEET_ID"
	EnvDriveRootFolder = "DRIVE_ROOT_FOLDER_ID"
	EnvListenAddr      = "LISTEN_ADDR"
	EnvOCREnabled      = "OCR_ENABLED"
	EnvOptionsFile     = "KEIHI_CONFIG"
)

// Defaults for optional settings.
const (
	DefaultListenAddr  = ":8080"
	DefaultOptionsFile = "keihi.yml"
)

// Config is the resolved process configuration.
type Config struct {
	SlackBotToken         string
	SlackAppToken         string
	GoogleCredentials     []byte // service account key JSON
	SettingsSpreadsheetID string
	DriveRootFolderID     string
	ListenAddr            string
	OCREnabled            bool
	Options               Options
}

// Load reads configuration from the environment and the options file.
func Load() (*Config, error) {
	cfg := &Config{
		SlackBotToken:         os.Getenv(EnvSlackBotToken),
		SlackAppToken:         os.Getenv(EnvSlackAppToken),
		SettingsSpreadsheetID: os.Getenv(EnvSettingsSheetID),
		DriveRootFolderID:     os.Getenv(EnvDriveRootFolder),
		ListenAddr:            os.Getenv(EnvListenAddr),
		OCREnabled:            boolEnv(EnvOCREnabled),
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}

	var missing []string
	if cfg.SlackBotToken == "" {
		missing = append(missing, EnvSlackBotToken)
	}
	if cfg.SlackAppToken == "" {
		missing = append(missing, EnvSlackAppToken)
	}
	if cfg.SettingsSpreadsheetID == "" {
		missing = append(missing, EnvSettingsSheetID)
	}
	if cfg.DriveRootFolderID == "" {
		missing = append(missing, EnvDriveRootFolder)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	creds, err := loadCredentials()
	if err != nil {
		return nil, err
	}
	cfg.GoogleCredentials = creds

	optsPath := os.Getenv(EnvOptionsFile)
	if optsPath == "" {
		optsPath = DefaultOptionsFile
	}
	opts, err := LoadOptions(optsPath)
	if err != nil {
		return nil, err
	}
	cfg.Options = *opts

	return cfg, nil
}

// loadCredentials returns the service account key JSON, preferring the inline
// GOOGLE_SERVICE_ACCOUNT_JSON variable over a key file path.
func loadCredentials() ([]byte, error) {
	if raw := os.Getenv(EnvGoogleCredsJSON); raw != "" {
		return []byte(raw), nil
	}
	path := os.Getenv(EnvGoogleCredsFile)
	if path == "" {
		return nil, fmt.Errorf("neither %s nor %s is set", EnvGoogleCredsJSON, EnvGoogleCredsFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func boolEnv(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
