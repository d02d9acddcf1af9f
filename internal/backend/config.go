package backend

import (
	"fmt"

	"clubfines/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	notifier := NotifierType(appConfig.NotifyBackend)
	if !notifier.IsValid() {
		return Config{}, fmt.Errorf("invalid notifier type in config: %s", appConfig.NotifyBackend)
	}

	return Config{
		Type: backendType,

		DataDirectory: appConfig.DataDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleTabs: [4]string{
			appConfig.GoogleMembersTab,
			appConfig.GoogleHistoryTab,
			appConfig.GoogleEventsTab,
			appConfig.GoogleRulesTab,
		},

		Notifier:         notifier,
		AMQPURL:          appConfig.AMQPURL,
		AMQPExchange:     appConfig.AMQPExchange,
		AMQPQueue:        appConfig.AMQPQueue,
		KafkaBrokers:     appConfig.KafkaBrokers,
		KafkaTopic:       appConfig.KafkaTopic,
		DiscordBotToken:  appConfig.DiscordBotToken,
		DiscordChannelID: appConfig.DiscordChannelID,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case CSVBackend:
		if c.DataDirectory == "" {
			return fmt.Errorf("data directory is required for csv backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case MemoryBackend:
		// DataDirectory is optional and only seeds the catalogs
	}

	if !c.Notifier.IsValid() {
		return fmt.Errorf("invalid notifier type: %s", c.Notifier)
	}
	for _, kind := range c.Notifier.Split() {
		switch kind {
		case AMQPNotifier:
			if c.AMQPURL == "" || c.AMQPExchange == "" || c.AMQPQueue == "" {
				return fmt.Errorf("AMQP URL, exchange and queue are required for amqp notifier")
			}
		case KafkaNotifier:
			if len(c.KafkaBrokers) == 0 {
				return fmt.Errorf("at least one broker is required for kafka notifier")
			}
		case DiscordNotifier:
			if c.DiscordBotToken == "" || c.DiscordChannelID == "" {
				return fmt.Errorf("bot token and channel ID are required for discord notifier")
			}
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{CSVBackend, MemoryBackend, SQLiteBackend, SheetsBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
