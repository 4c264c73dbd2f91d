package cmn

// DataType enumerates the wire/storage vector element encodings.
type DataType int

const (
	DataTypeUndefined DataType = iota
	DataTypeVectorFP32
	DataTypeVectorFP16
	DataTypeVectorFP64
	DataTypeVectorInt16
	DataTypeVectorInt8
	DataTypeVectorInt4
	DataTypeVectorBinary32
	DataTypeVectorBinary64
)

func (d DataType) String() string {
	switch d {
	case DataTypeVectorFP32:
		return "VECTOR_FP32"
	case DataTypeVectorFP16:
		return "VECTOR_FP16"
	case DataTypeVectorFP64:
		return "VECTOR_FP64"
	case DataTypeVectorInt16:
		return "VECTOR_INT16"
	case DataTypeVectorInt8:
		return "VECTOR_INT8"
	case DataTypeVectorInt4:
		return "VECTOR_INT4"
	case DataTypeVectorBinary32:
		return "VECTOR_BINARY32"
	case DataTypeVectorBinary64:
		return "VECTOR_BINARY64"
	default:
		return "UNDEFINED"
	}
}

// IndexType enumerates the index-column kind. Only one variant exists today
// (graph ANN); the enum leaves room for future kinds without touching the
// wire format.
type IndexType int

const (
	IndexTypeUndefined IndexType = iota
	IndexTypeProximaGraph
)

// CollectionStatus is a revision's lifecycle state.
type CollectionStatus int

const (
	StatusInitialized CollectionStatus = iota
	StatusServing
	StatusDropped
)

func (s CollectionStatus) String() string {
	switch s {
	case StatusInitialized:
		return "INITIALIZED"
	case StatusServing:
		return "SERVING"
	case StatusDropped:
		return "DROPPED"
	default:
		return "UNKNOWN"
	}
}

// OperationType is a write row's mutation kind.
type OperationType int

const (
	OpInsert OperationType = iota
	OpUpdate
	OpDelete
)

// WriteMode selects between the direct and proxied write paths.
type WriteMode int

const (
	WriteModeDirect WriteMode = iota
	WriteModeProxy
)

// ElementSize returns the canonical per-element byte width for scalar data
// types (not meaningful for the bit-packed binary types, whose size depends
// on dimension — see ExpectedByteLength).
func (d DataType) ElementSize() int {
	switch d {
	case DataTypeVectorFP32:
		return 4
	case DataTypeVectorFP16, DataTypeVectorInt16:
		return 2
	case DataTypeVectorFP64:
		return 8
	case DataTypeVectorInt8:
		return 1
	default:
		return 0
	}
}

// ExpectedByteLength returns the exact number of bytes a transcoded vector
// of the given dimension must occupy in destination data type dt.
func ExpectedByteLength(dt DataType, dimension int) int {
	switch dt {
	case DataTypeVectorBinary32:
		return (dimension / 32) * 4
	case DataTypeVectorBinary64:
		return (dimension / 64) * 8
	case DataTypeVectorInt4:
		return dimension / 2
	case DataTypeVectorFP16, DataTypeVectorInt16:
		return dimension * 2
	case DataTypeVectorFP32:
		return dimension * 4
	case DataTypeVectorFP64:
		return dimension * 8
	case DataTypeVectorInt8:
		return dimension
	default:
		return 0
	}
}

// HTTP route paths exposed by the collection and document API.
const (
	URLPathCollection       = "/v1/collection/{name}"
	URLPathCollectionStats  = "/v1/collection/{name}/stats"
	URLPathCollectionIndex  = "/v1/collection/{name}/index"
	URLPathCollectionQuery  = "/v1/collection/{name}/query"
	URLPathCollectionDoc    = "/v1/collection/{name}/doc"
	URLPathCollectionsList  = "/v1/collections"
	URLPathServiceVersion   = "/service_version"
)

// Config key names read from the process configuration file.
const (
	KeyProtocol               = "protocol"
	KeyGRPCListenPort         = "grpc_listen_port"
	KeyHTTPListenPort         = "http_listen_port"
	KeyLogDirectory           = "log_directory"
	KeyLogFile                = "log_file"
	KeyLogLevel               = "log_level"
	KeyLoggerType             = "logger_type"
	KeyIndexBuildThreadCount  = "index.build_thread_count"
	KeyIndexDumpThreadCount   = "index.dump_thread_count"
	KeyIndexMaxBuildQPS       = "index.max_build_qps"
	KeyIndexDirectory         = "index.directory"
	KeyIndexFlushIntervalS    = "index.flush_internal_s"
	KeyIndexOptimizeIntervalS = "index.optimize_internal_s"
	KeyIndexDrainTimeoutS     = "index.schema_update_drain_timeout_s"
	KeyMetaURI                = "meta.uri"
	KeyQueryThreadCount       = "query.thread_count"
)

// MaxThreadCount is the single upper bound used everywhere a thread/pool
// count is validated.
const MaxThreadCount = 500

// ServiceVersion is returned by get_version/GET /service_version.
const ServiceVersion = "1.0.0"
