// Package cmn provides the shared constants, error taxonomy, and config
// types used across the vector search engine's subsystems.
package cmn

import (
	"fmt"
	"sync"
)

// Code is a stable, wire-visible error code: every code is declared once
// at package-init time and carries a fixed human-readable description
// that `What` can recover later.
type Code int

const (
	Success Code = 0

	// 1000s — common
	CodeRuntimeError Code = 1000 + iota
	CodeInvalidArgument
	CodeNotInitialized
	CodeOpenFile
	CodeReadData
	CodeWriteData
	CodeSerializeError
	CodeDeserializeError
	CodeStartServer
)

const (
	// 2000s — schema/format
	CodeEmptyCollectionName Code = 2000 + iota
	CodeEmptyColumnName
	CodeEmptyColumns
	CodeInvalidCollectionStatus
	CodeInvalidRecord
	CodeInvalidQuery
	CodeInvalidWriteRequest
	CodeInvalidVectorFormat
	CodeInvalidRepositoryType
	CodeInvalidDataType
	CodeInvalidIndexType
	CodeInvalidFeature
	CodeMismatchedSchema
	CodeMismatchedMagicNumber
	CodeMismatchedIndexColumn
	CodeMismatchedDimension
	CodeMismatchedDataType
	CodeMismatchedForward
	CodeEmptyLsnContext
)

const (
	// 3000s — meta
	CodeUpdateStatusField Code = 3000 + iota
	CodeUpdateRevisionField
	CodeUpdateCollectionUIDField
	CodeUpdateIndexTypeField
	CodeUpdateDataTypeField
	CodeUpdateRepositoryTypeField
	CodeUpdateColumnNameField
	CodeZeroDocsPerSegment
	CodeUnsupportedConnection
)

const (
	// 4000s — index/runtime
	CodeDuplicateCollection Code = 4000 + iota
	CodeDuplicateKey
	CodeInexistentCollection
	CodeInexistentColumn
	CodeInexistentKey
	CodeSuspendedCollection
	CodeLostSegment
	CodeExceedRateLimit
)

const (
	// 5000s — query path
	CodeUnavailableSegment Code = 5000 + iota
	CodeOutOfBoundsResult
	CodeUnreadyQueue
	CodeScheduleError
	CodeUnreadableCollection
	CodeTaskIsRunning
)

var (
	registryMu sync.Mutex
	registry   = map[Code]string{}
)

func register(c Code, desc string) Code {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[c] = desc
	return c
}

func init() {
	register(Success, "success")
	register(CodeRuntimeError, "runtime error")
	register(CodeInvalidArgument, "invalid argument")
	register(CodeNotInitialized, "not initialized")
	register(CodeOpenFile, "failed to open file")
	register(CodeReadData, "failed to read data")
	register(CodeWriteData, "failed to write data")
	register(CodeSerializeError, "failed to serialize")
	register(CodeDeserializeError, "failed to deserialize")
	register(CodeStartServer, "failed to start server")

	register(CodeEmptyCollectionName, "collection name is empty")
	register(CodeEmptyColumnName, "column name is empty")
	register(CodeEmptyColumns, "columns are empty")
	register(CodeInvalidCollectionStatus, "invalid collection status")
	register(CodeInvalidRecord, "invalid record")
	register(CodeInvalidQuery, "invalid query")
	register(CodeInvalidWriteRequest, "invalid write request")
	register(CodeInvalidVectorFormat, "invalid vector format")
	register(CodeInvalidRepositoryType, "invalid repository type")
	register(CodeInvalidDataType, "invalid data type")
	register(CodeInvalidIndexType, "invalid index type")
	register(CodeInvalidFeature, "invalid feature")
	register(CodeMismatchedSchema, "mismatched schema")
	register(CodeMismatchedMagicNumber, "mismatched magic number")
	register(CodeMismatchedIndexColumn, "mismatched index column")
	register(CodeMismatchedDimension, "mismatched dimension")
	register(CodeMismatchedDataType, "mismatched data type")
	register(CodeMismatchedForward, "mismatched forward column")
	register(CodeEmptyLsnContext, "lsn context is empty")

	register(CodeUpdateStatusField, "cannot update immutable status field")
	register(CodeUpdateRevisionField, "cannot update immutable revision field")
	register(CodeUpdateCollectionUIDField, "cannot update immutable collection uid field")
	register(CodeUpdateIndexTypeField, "cannot update immutable index type field")
	register(CodeUpdateDataTypeField, "cannot update immutable data type field")
	register(CodeUpdateRepositoryTypeField, "cannot update immutable repository type field")
	register(CodeUpdateColumnNameField, "cannot rename column outside of update_collection")
	register(CodeZeroDocsPerSegment, "max_docs_per_segment must be non-negative")
	register(CodeUnsupportedConnection, "unsupported meta store connection scheme")

	register(CodeDuplicateCollection, "collection already exists")
	register(CodeDuplicateKey, "duplicate primary key")
	register(CodeInexistentCollection, "collection does not exist")
	register(CodeInexistentColumn, "column does not exist")
	register(CodeInexistentKey, "primary key does not exist")
	register(CodeSuspendedCollection, "collection is suspended")
	register(CodeLostSegment, "segment is missing")
	register(CodeExceedRateLimit, "exceeded write rate limit")

	register(CodeUnavailableSegment, "segment unavailable")
	register(CodeOutOfBoundsResult, "result out of bounds")
	register(CodeUnreadyQueue, "query queue not ready")
	register(CodeScheduleError, "failed to schedule task")
	register(CodeUnreadableCollection, "collection is not readable")
	register(CodeTaskIsRunning, "task already running")
}

// What returns the stable description registered for code, or "" if unknown.
func What(c Code) string {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[c]
}

// Error is the standard (code, reason) pair every public operation returns.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", What(e.Code), e.Reason)
	}
	return What(e.Code)
}

// NewError builds an *Error, formatting Reason like fmt.Sprintf.
func NewError(code Code, format string, a ...interface{}) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, a...)}
}

// AsCode extracts the Code carried by err, or CodeRuntimeError if err is not
// one of ours (nil returns Success).
func AsCode(err error) Code {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeRuntimeError
}
