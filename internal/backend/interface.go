package backend

import (
	"context"
	"slices"
	"strings"

	"clubfines/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store instance and optional cleanup function
type BackendResult struct {
	Store   sheets.Store
	Cleanup CleanupFunc
}

// NotifierResult contains the change notifier, nil when notifications are
// disabled, and optional cleanup function
type NotifierResult struct {
	Notifier sheets.ChangeNotifier
	Cleanup  CleanupFunc
}

// Factory creates stores and notifiers based on configuration
type Factory interface {
	// CreateBackend creates a store instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)

	// CreateNotifier creates the change notifier selected by the config
	CreateNotifier(ctx context.Context, config Config) (*NotifierResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// CSV and memory backends
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleTabs               [4]string // members, history, events, rules

	// Notifications
	Notifier         NotifierType
	AMQPURL          string
	AMQPExchange     string
	AMQPQueue        string
	KafkaBrokers     []string
	KafkaTopic       string
	DiscordBotToken  string
	DiscordChannelID string
}

// BackendType represents the type of backend
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, MemoryBackend, SQLiteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}

// NotifierType selects where ledger changes are published
type NotifierType string

const (
	NoNotifier      NotifierType = "none"
	AMQPNotifier    NotifierType = "amqp"
	KafkaNotifier   NotifierType = "kafka"
	DiscordNotifier NotifierType = "discord"
)

// IsValid returns true if every listed notifier type is valid. The empty
// type means none.
func (nt NotifierType) IsValid() bool {
	for _, kind := range nt.Split() {
		switch kind {
		case NoNotifier, AMQPNotifier, KafkaNotifier, DiscordNotifier:
		default:
			return false
		}
	}
	return true
}

// Split breaks a comma separated list such as "amqp,discord" into its
// parts. "none" entries and blanks are dropped.
func (nt NotifierType) Split() []NotifierType {
	var out []NotifierType
	for _, part := range strings.Split(string(nt), ",") {
		kind := NotifierType(strings.ToLower(strings.TrimSpace(part)))
		if kind == "" || kind == NoNotifier {
			continue
		}
		if !slices.Contains(out, kind) {
			out = append(out, kind)
		}
	}
	return out
}
