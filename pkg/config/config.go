// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/sql"
	"gopkg.in/yaml.v2"
)

type Config struct {
	HttpPort      int                 `json:"httpPort" yaml:"httpPort"`
	Database      sql.DatabaseConfig  `json:"database" yaml:"database"`
	ObjectStorage ObjectStorageConfig `json:"objectStorage" yaml:"objectStorage"`
	VectorIndex   VectorIndexConfig   `json:"vectorIndex" yaml:"vectorIndex"`
	Embedding     EmbeddingConfig     `json:"embedding" yaml:"embedding"`
	Models        []ModelConfig       `json:"models" yaml:"models"`
	Pipeline      PipelineConfig      `json:"pipeline" yaml:"pipeline"`
	Worker        WorkerConfig        `json:"worker" yaml:"worker"`
	Jobs          JobsConfig          `json:"jobs" yaml:"jobs"`
	RateLimit     RateLimitConfig     `json:"rateLimit" yaml:"rateLimit"`
	Middleware    MiddlewareConfig    `json:"middleware" yaml:"middleware"`

	// SecretKeyEnv names the environment variable holding the symmetric
	// secret the encryption helper seals stored VCS tokens with.
	SecretKeyEnv string `json:"secretKeyEnv" yaml:"secretKeyEnv"`
}

// ObjectStorageConfig configures the MinIO/S3 backend holding repo
// content blobs.
type ObjectStorageConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	Secure    bool   `json:"secure" yaml:"secure"`
	Region    string `json:"region" yaml:"region"`
}

func (c ObjectStorageConfig) GetBucket() string {
	if c.Bucket == "" {
		return "repo-content"
	}
	return c.Bucket
}

type VectorIndexConfig struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	Collection string `json:"collection" yaml:"collection"`
	VectorSize int    `json:"vector_size" yaml:"vector_size"`
}

func (c VectorIndexConfig) GetCollection() string {
	if c.Collection == "" {
		return "code_embeddings"
	}
	return c.Collection
}

func (c VectorIndexConfig) GetVectorSize() int {
	// Vector size follows the external embedding model: 1536 or 3072.
	if c.VectorSize == 0 {
		return 1536
	}
	return c.VectorSize
}

func (c VectorIndexConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

type EmbeddingConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Model     string `json:"model" yaml:"model"`
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"`
	BatchSize int    `json:"batch_size" yaml:"batch_size"`
	TimeoutS  int    `json:"timeout_s" yaml:"timeout_s"`
}

func (c EmbeddingConfig) GetBatchSize() int {
	if c.BatchSize <= 0 {
		return 64
	}
	return c.BatchSize
}

func (c EmbeddingConfig) GetTimeout() time.Duration {
	if c.TimeoutS <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutS) * time.Second
}

// ModelConfig is one entry of the LLM model registry used by the broad
// scan and the investigator.
type ModelConfig struct {
	ID        string `json:"id" yaml:"id"`
	Provider  string `json:"provider" yaml:"provider"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"`
	TimeoutS  int    `json:"timeout_s" yaml:"timeout_s"`
}

func (c ModelConfig) GetTimeout() time.Duration {
	if c.TimeoutS <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutS) * time.Second
}

type PipelineConfig struct {
	CloneBaseDir            string `json:"clone_base_dir" yaml:"clone_base_dir"`
	MaxFileSizeBytes        int64  `json:"max_file_size_bytes" yaml:"max_file_size_bytes"`
	HeartbeatThrottleSecs   int    `json:"heartbeat_throttle_seconds" yaml:"heartbeat_throttle_seconds"`
	StuckThresholdSecs      int    `json:"stuck_threshold_seconds" yaml:"stuck_threshold_seconds"`
	InvestigationEnabled    *bool  `json:"investigation_enabled" yaml:"investigation_enabled"`
	InvestigationSandboxDir string `json:"investigation_sandbox_dir" yaml:"investigation_sandbox_dir"`
}

func (c PipelineConfig) GetCloneBaseDir() string {
	if c.CloneBaseDir == "" {
		return os.TempDir()
	}
	return c.CloneBaseDir
}

func (c PipelineConfig) GetMaxFileSize() int64 {
	if c.MaxFileSizeBytes <= 0 {
		return 1 << 20 // 1 MiB
	}
	return c.MaxFileSizeBytes
}

func (c PipelineConfig) GetHeartbeatThrottle() time.Duration {
	if c.HeartbeatThrottleSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.HeartbeatThrottleSecs) * time.Second
}

func (c PipelineConfig) GetStuckThreshold() time.Duration {
	if c.StuckThresholdSecs <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.StuckThresholdSecs) * time.Second
}

func (c PipelineConfig) IsInvestigationEnabled() bool {
	if c.InvestigationEnabled == nil {
		return true
	}
	return *c.InvestigationEnabled
}

type WorkerConfig struct {
	InstanceID         string `json:"instance_id" yaml:"instance_id"`
	ScanIntervalSecs   int    `json:"scan_interval_seconds" yaml:"scan_interval_seconds"`
	MaxConcurrentTasks int    `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
}

func (c WorkerConfig) GetScanInterval() time.Duration {
	if c.ScanIntervalSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ScanIntervalSecs) * time.Second
}

func (c WorkerConfig) GetMaxConcurrentTasks() int {
	if c.MaxConcurrentTasks <= 0 {
		return 4
	}
	return c.MaxConcurrentTasks
}

type JobsConfig struct {
	GCCron            string `json:"gc_cron" yaml:"gc_cron"`
	StuckCron         string `json:"stuck_cron" yaml:"stuck_cron"`
	FailedTTLHours    int    `json:"failed_ttl_hours" yaml:"failed_ttl_hours"`
	UploadingTTLHours int    `json:"uploading_ttl_hours" yaml:"uploading_ttl_hours"`
	AgeTTLDays        int    `json:"age_ttl_days" yaml:"age_ttl_days"`
}

func (c JobsConfig) GetFailedTTL() time.Duration {
	if c.FailedTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.FailedTTLHours) * time.Hour
}

func (c JobsConfig) GetUploadingTTL() time.Duration {
	if c.UploadingTTLHours <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(c.UploadingTTLHours) * time.Hour
}

func (c JobsConfig) GetAgeTTL() time.Duration {
	if c.AgeTTLDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.AgeTTLDays) * 24 * time.Hour
}

type RateLimitConfig struct {
	Enabled   *bool `json:"enabled" yaml:"enabled"`
	PerMinute int   `json:"per_minute" yaml:"per_minute"`
}

func (c RateLimitConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

func (c RateLimitConfig) GetPerMinute() int {
	if c.PerMinute <= 0 {
		return 60
	}
	return c.PerMinute
}

// MiddlewareConfig middleware configuration
type MiddlewareConfig struct {
	EnableLogging  *bool `json:"enableLogging" yaml:"enableLogging"`
	SSEPollSeconds int   `json:"ssePollSeconds" yaml:"ssePollSeconds"`
}

// IsLoggingEnabled returns whether logging middleware is enabled, default enabled
func (m MiddlewareConfig) IsLoggingEnabled() bool {
	if m.EnableLogging == nil {
		return true
	}
	return *m.EnableLogging
}

// GetSSEPollInterval returns how often an event stream re-reads its
// analysis row, default 2s
func (m MiddlewareConfig) GetSSEPollInterval() time.Duration {
	if m.SSEPollSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(m.SSEPollSeconds) * time.Second
}

var config *Config

func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	configFile, err := os.Open(configPath)
	if err != nil {
		return nil, errors.NewError().
			WithCode(errors.CodeInitializeError).
			WithMessage("failed to open config file").
			WithError(err)
	}
	defer configFile.Close()
	decoder := yaml.NewDecoder(configFile)
	err = decoder.Decode(&config)
	if err != nil {
		return nil, errors.NewError().
			WithCode(errors.CodeInitializeError).
			WithMessage("failed to parse config file").
			WithError(err)
	}
	return config, nil
}

// GetSecretKey resolves the configured secret key from the environment.
func (c *Config) GetSecretKey() (string, error) {
	env := c.SecretKeyEnv
	if env == "" {
		env = "CODELENS_SECRET_KEY"
	}
	key := os.Getenv(env)
	if key == "" {
		return "", errors.NewError().
			WithCode(errors.CodeLackOfConfig).
			WithMessagef("secret key env %s is not set", env)
	}
	return key, nil
}
