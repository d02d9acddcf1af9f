package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clubfines/internal/adapters"
	"clubfines/internal/amqp"
	"clubfines/internal/sheets/csvfile"
	gsheet "clubfines/internal/sheets/google"
	"clubfines/internal/sheets/memory"
	"clubfines/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case CSVBackend:
		return f.createCSVBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	store, err := csvfile.New(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CSV store: %w", err)
	}

	f.logger.Info("Initialized CSV backend", "data_directory", config.DataDirectory)

	return &BackendResult{Store: store}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   sqliteRepo,
		Cleanup: sqliteRepo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := NewSheetsClient(ctx, config)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{
		Store:   cli,
		Cleanup: nil, // No cleanup needed for sheets backend
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store := memory.NewFromFiles(config.DataDirectory)

	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)

	return &BackendResult{
		Store:   store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

// NewSheetsClient builds the Google Sheets client described by config. The
// mirror worker uses it directly as its target.
func NewSheetsClient(ctx context.Context, config Config) (*gsheet.Client, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Tabs: gsheet.Tabs{
			Members: config.GoogleTabs[0],
			History: config.GoogleTabs[1],
			Events:  config.GoogleTabs[2],
			Rules:   config.GoogleTabs[3],
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}

// CreateNotifier implements Factory.CreateNotifier. Several notifier types
// fan out through adapters.Multi. A broker that cannot be reached at startup
// is left out instead of failing the server.
func (f *DefaultFactory) CreateNotifier(_ context.Context, config Config) (*NotifierResult, error) {
	if !config.Notifier.IsValid() {
		return nil, fmt.Errorf("invalid notifier type: %s", config.Notifier)
	}

	var (
		multi    adapters.Multi
		cleanups []CleanupFunc
	)
	for _, kind := range config.Notifier.Split() {
		r, err := f.createNotifier(kind, config)
		if err != nil {
			for _, c := range cleanups {
				_ = c()
			}
			return nil, err
		}
		if r.Notifier == nil {
			continue
		}
		multi = append(multi, r.Notifier)
		if r.Cleanup != nil {
			cleanups = append(cleanups, r.Cleanup)
		}
	}

	switch len(multi) {
	case 0:
		return &NotifierResult{}, nil
	case 1:
		return &NotifierResult{Notifier: multi[0], Cleanup: joinCleanups(cleanups)}, nil
	default:
		return &NotifierResult{Notifier: multi, Cleanup: joinCleanups(cleanups)}, nil
	}
}

func (f *DefaultFactory) createNotifier(kind NotifierType, config Config) (*NotifierResult, error) {
	switch kind {
	case AMQPNotifier:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without it", "error", err)
			return &NotifierResult{}, nil
		}
		f.logger.Info("Initialized AMQP client",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return &NotifierResult{Notifier: client, Cleanup: client.Close}, nil

	case KafkaNotifier:
		n := adapters.NewKafkaNotifier(config.KafkaBrokers, config.KafkaTopic)
		f.logger.Info("Initialized Kafka notifier", "brokers", config.KafkaBrokers, "topic", config.KafkaTopic)
		return &NotifierResult{Notifier: n, Cleanup: n.Close}, nil

	case DiscordNotifier:
		n, err := adapters.NewDiscordNotifier(config.DiscordBotToken, config.DiscordChannelID)
		if err != nil {
			return nil, err
		}
		f.logger.Info("Initialized Discord notifier", "channel_id", config.DiscordChannelID)
		return &NotifierResult{Notifier: n, Cleanup: n.Close}, nil

	default:
		return nil, fmt.Errorf("invalid notifier type: %s", kind)
	}
}

func joinCleanups(fns []CleanupFunc) CleanupFunc {
	if len(fns) == 0 {
		return nil
	}
	return func() error {
		var errs []error
		for _, fn := range fns {
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
