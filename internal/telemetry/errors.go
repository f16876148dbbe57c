package telemetry

import "codeberg.org/mutker/thermals/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("telemetry_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("telemetry_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("telemetry_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("telemetry_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("telemetry_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrorCode("telemetry_storage_init_failed")
	ErrStorageClose = errors.ErrorCode("telemetry_storage_close_failed")

	// Service Errors
	ErrServiceShutdown = errors.ErrShutdownFailed
	ErrRecordFailed    = errors.ErrorCode("telemetry_record_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
