package metrics

import "codeberg.org/mutker/sensorctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("journal_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("journal_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("journal_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("journal_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("journal_transaction_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("journal_storage_access_failed")
	ErrStorageInit   = errors.ErrInitJournal
	ErrStorageClose  = errors.ErrCloseJournal

	// Service Errors
	ErrServiceShutdown = errors.ErrShutdownFailed

	// Recording Errors
	ErrRecordFailed      = errors.ErrRecordJournal
	ErrInvalidTransition = errors.ErrorCode("journal_invalid_transition")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
