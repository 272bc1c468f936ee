package history

import (
	"git.home.luguber.info/inful/sassc/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.EventStoreError("could not open history database").Build()

	// ErrInitializeSchemaFailed indicates the schema could not be created.
	ErrInitializeSchemaFailed = errors.EventStoreError("failed to initialize history schema").Build()

	ErrAppendFailed = errors.EventStoreError("failed to append history record").Build()
	ErrQueryFailed  = errors.EventStoreError("failed to query history").Build()
)
