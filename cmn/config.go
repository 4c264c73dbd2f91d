package cmn

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully-resolved, immutable-once-loaded configuration for one
// server process. It is threaded explicitly into every subsystem
// constructor (meta.Service, agent.IndexAgent, query.Agent, server.*) —
// there is no package-level config singleton.
type Config struct {
	Protocol string `mapstructure:"protocol"`

	GRPCListenPort int `mapstructure:"grpc_listen_port"`
	HTTPListenPort int `mapstructure:"http_listen_port"`

	LogDirectory string `mapstructure:"log_directory"`
	LogFile      string `mapstructure:"log_file"`
	LogLevel     int    `mapstructure:"log_level"`
	LoggerType   string `mapstructure:"logger_type"`

	Index IndexConfig `mapstructure:"index"`
	Meta  MetaConfig  `mapstructure:"meta"`
	Query QueryConfig `mapstructure:"query"`
}

type IndexConfig struct {
	BuildThreadCount  int    `mapstructure:"build_thread_count"`
	DumpThreadCount   int    `mapstructure:"dump_thread_count"`
	MaxBuildQPS       int    `mapstructure:"max_build_qps"`
	Directory         string `mapstructure:"directory"`
	FlushIntervalS    int    `mapstructure:"flush_internal_s"`
	OptimizeIntervalS int    `mapstructure:"optimize_internal_s"`
	// DrainTimeoutS bounds the schema-update quiescence wait; 0 means wait
	// forever.
	DrainTimeoutS int `mapstructure:"schema_update_drain_timeout_s"`
}

type MetaConfig struct {
	URI string `mapstructure:"uri"`
}

type QueryConfig struct {
	ThreadCount int `mapstructure:"thread_count"`
}

// Default returns the configuration with every documented default already
// applied.
func Default() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		Protocol:       "grpc|http",
		GRPCListenPort: 16000,
		HTTPListenPort: 16001,
		LogDirectory:   "./log/",
		LogFile:        "vsearchd.log",
		LogLevel:       2,
		LoggerType:     "AppendLogger",
		Index: IndexConfig{
			BuildThreadCount: 10,
			DumpThreadCount:  3,
			MaxBuildQPS:      0,
			Directory:        cwd,
			FlushIntervalS:   300,
			DrainTimeoutS:    0,
		},
		Meta: MetaConfig{
			URI: fmt.Sprintf("sqlite://%s/vsearchd_meta.sqlite", cwd),
		},
		Query: QueryConfig{
			ThreadCount: runtime.NumCPU(),
		},
	}
}

// Load reads configuration from an optional file path, overlaying
// VSEARCH_*-prefixed environment variables, on top of Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("VSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewError(CodeOpenFile, "read config %s: %v", path, err)
		}
	}

	v.SetDefault("protocol", cfg.Protocol)
	v.SetDefault("grpc_listen_port", cfg.GRPCListenPort)
	v.SetDefault("http_listen_port", cfg.HTTPListenPort)
	v.SetDefault("log_directory", cfg.LogDirectory)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("logger_type", cfg.LoggerType)
	v.SetDefault("index.build_thread_count", cfg.Index.BuildThreadCount)
	v.SetDefault("index.dump_thread_count", cfg.Index.DumpThreadCount)
	v.SetDefault("index.max_build_qps", cfg.Index.MaxBuildQPS)
	v.SetDefault("index.directory", cfg.Index.Directory)
	v.SetDefault("index.flush_internal_s", cfg.Index.FlushIntervalS)
	v.SetDefault("index.optimize_internal_s", cfg.Index.OptimizeIntervalS)
	v.SetDefault("index.schema_update_drain_timeout_s", cfg.Index.DrainTimeoutS)
	v.SetDefault("meta.uri", cfg.Meta.URI)
	v.SetDefault("query.thread_count", cfg.Query.ThreadCount)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, NewError(CodeRuntimeError, "unmarshal config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces a single consistent thread-count bound everywhere a
// thread/pool count is configured, and the other sanity checks the config
// table implies.
func (c *Config) Validate() error {
	if c.Index.BuildThreadCount < 1 || c.Index.BuildThreadCount > MaxThreadCount {
		return NewError(CodeInvalidArgument, "index.build_thread_count out of range [1, %d]", MaxThreadCount)
	}
	if c.Query.ThreadCount < 1 || c.Query.ThreadCount > MaxThreadCount {
		return NewError(CodeInvalidArgument, "query.thread_count out of range [1, %d]", MaxThreadCount)
	}
	if c.Index.MaxBuildQPS < 0 {
		return NewError(CodeInvalidArgument, "index.max_build_qps must be >= 0")
	}
	if c.GRPCListenPort == c.HTTPListenPort {
		return NewError(CodeInvalidArgument, "grpc_listen_port and http_listen_port must differ")
	}
	return nil
}

// EnableGRPC / EnableHTTP decode the "grpc|http" protocol key.
func (c *Config) EnableGRPC() bool { return strings.Contains(c.Protocol, "grpc") }
func (c *Config) EnableHTTP() bool { return strings.Contains(c.Protocol, "http") }
