package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/fileshare/internal/flagx"
	"github.com/dmitrijs2005/fileshare/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations accept both "1s"
// strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	ShutdownTimeout             timex.Duration `json:"shutdown_timeout"`
	MetadataBackend             string         `json:"metadata_backend"`
	DatabaseDSN                 string         `json:"database_dsn"`
	BlobBackend                 string         `json:"blob_backend"`
	BoltPath                    string         `json:"bolt_path"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	CipherAlgorithm             string         `json:"cipher_algorithm"`
	ChunkSize                   int            `json:"chunk_size"`
	MasterPassphrase            string         `json:"master_passphrase"`
	MasterSalt                  string         `json:"master_salt"`
	ShredKeysOnDelete           bool           `json:"shred_keys_on_delete"`
	SearchExcludeDeleted        bool           `json:"search_exclude_deleted"`
	MaxUploadSize               int64          `json:"max_upload_size"`
	RateLimitRPS                float64        `json:"rate_limit_rps"`
	RateLimitBurst              int            `json:"rate_limit_burst"`
	LogFormat                   string         `json:"log_format"`
	LogLevel                    string         `json:"log_level"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:            c.EndpointAddrHTTP,
		SecretKey:                   c.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: c.AccessTokenValidityDuration},
		ShutdownTimeout:             timex.Duration{Duration: c.ShutdownTimeout},
		MetadataBackend:             c.MetadataBackend,
		DatabaseDSN:                 c.DatabaseDSN,
		BlobBackend:                 c.BlobBackend,
		BoltPath:                    c.BoltPath,
		S3RootUser:                  c.S3RootUser,
		S3RootPassword:              c.S3RootPassword,
		S3Bucket:                    c.S3Bucket,
		S3Region:                    c.S3Region,
		S3BaseEndpoint:              c.S3BaseEndpoint,
		CipherAlgorithm:             c.CipherAlgorithm,
		ChunkSize:                   c.ChunkSize,
		MasterPassphrase:            c.MasterPassphrase,
		MasterSalt:                  c.MasterSalt,
		ShredKeysOnDelete:           c.ShredKeysOnDelete,
		SearchExcludeDeleted:        c.SearchExcludeDeleted,
		MaxUploadSize:               c.MaxUploadSize,
		RateLimitRPS:                c.RateLimitRPS,
		RateLimitBurst:              c.RateLimitBurst,
		LogFormat:                   c.LogFormat,
		LogLevel:                    c.LogLevel,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.ShutdownTimeout = j.ShutdownTimeout.Duration
	c.MetadataBackend = j.MetadataBackend
	c.DatabaseDSN = j.DatabaseDSN
	c.BlobBackend = j.BlobBackend
	c.BoltPath = j.BoltPath
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.CipherAlgorithm = j.CipherAlgorithm
	c.ChunkSize = j.ChunkSize
	c.MasterPassphrase = j.MasterPassphrase
	c.MasterSalt = j.MasterSalt
	c.ShredKeysOnDelete = j.ShredKeysOnDelete
	c.SearchExcludeDeleted = j.SearchExcludeDeleted
	c.MaxUploadSize = j.MaxUploadSize
	c.RateLimitRPS = j.RateLimitRPS
	c.RateLimitBurst = j.RateLimitBurst
	c.LogFormat = j.LogFormat
	c.LogLevel = j.LogLevel
}

// parseJson overlays the JSON file named by -c/-config (or FILESHARE_CONFIG)
// onto config. Keys missing from the file keep their current values.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	j := toJson(config)
	if err := json.Unmarshal(data, j); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	j.apply(config)
	return nil
}
