package metrics

import "codeberg.org/mutker/nvidiapl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("metrics_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("metrics_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("metrics_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("metrics_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("metrics_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed

	// Collection Errors
	ErrMetricsCollection = errors.ErrorCode("metrics_collection_failed")
	ErrInvalidSample     = errors.ErrorCode("metrics_invalid_sample")
	ErrCollectorClosed   = errors.ErrorCode("metrics_collector_closed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)

func init() {
	errors.Register(ErrInvalidDBPath, "Metrics database path is required")
	errors.Register(ErrSchemaInitFailed, "Failed to initialize metrics schema")
	errors.Register(ErrSchemaValidationFailed, "Failed to validate metrics schema")
	errors.Register(ErrSchemaMigrationFailed, "Failed to migrate metrics schema")
	errors.Register(ErrTransactionFailed, "Metrics transaction failed")
	errors.Register(ErrMetricsCollection, "Failed to record sample")
	errors.Register(ErrInvalidSample, "Invalid sample")
	errors.Register(ErrCollectorClosed, "Metrics collector is closed")
}
