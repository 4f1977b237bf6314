package backend

import (
	"context"
	"fmt"

	"pockets/internal/amqp"
	applog "pockets/internal/log"
	"pockets/internal/storage"
	"pockets/internal/store"
	"pockets/internal/store/google"
	"pockets/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
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

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	result := &BackendResult{Log: repo, Directory: repo, Cleanup: repo.Close}

	// AMQP is optional: the worker also polls the mirror version.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = client
			result.Cleanup = func() error {
				clientErr := client.Close()
				if err := repo.Close(); err != nil {
					return err
				}
				return clientErr
			}
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", result.Publisher != nil)

	return result, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := google.NewFromConfig(ctx, google.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		LedgerSheet:     config.GoogleSheetName,
		BalanceSheet:    config.GoogleBalancesSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	// The spreadsheet carries the log only; pockets and goals stay local.
	dir, err := f.openMemory(config.DataFile)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized Google Sheets backend",
		"sheet", config.GoogleSheetName,
		"data_file", config.DataFile)

	return &BackendResult{
		Log:       store.NewSnapshotLog(cli),
		Directory: dir,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	s, err := f.openMemory(config.DataFile)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized memory backend", "data_file", config.DataFile)

	return &BackendResult{Log: s, Directory: s}, nil
}

func (f *DefaultFactory) openMemory(path string) (*memory.Store, error) {
	if path == "" {
		return memory.New(), nil
	}
	s, err := memory.NewFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file %s: %w", path, err)
	}
	return s, nil
}
