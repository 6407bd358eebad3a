package objectstore

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/cvsync/errors"
)

// Config holds the object store bucket settings of the report archive.
type Config struct {
	// Bucket is the JetStream object store bucket name.
	Bucket string `json:"bucket"`

	// Prefix is prepended to every report key.
	Prefix string `json:"prefix,omitempty"`

	// MaxAge expires archived reports. Zero keeps them forever.
	MaxAge time.Duration `json:"max_age,omitempty"`

	// MaxBytes caps the bucket size. Zero is unlimited.
	MaxBytes int64 `json:"max_bytes,omitempty"`
}

// DefaultConfig returns the default archive configuration.
func DefaultConfig() Config {
	return Config{
		Bucket: "CV_REPORTS",
		Prefix: "reports/",
	}
}

// Validate checks the bucket name.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.WrapInvalid(stderrors.New("bucket is required"), "objectstore", "Validate", "check bucket")
	}
	if strings.ContainsAny(c.Bucket, " .*>") {
		return errors.WrapInvalid(stderrors.New("bucket contains invalid characters"), "objectstore", "Validate",
			"check bucket "+c.Bucket)
	}
	if c.MaxAge < 0 || c.MaxBytes < 0 {
		return errors.WrapInvalid(stderrors.New("limits must not be negative"), "objectstore", "Validate", "check limits")
	}
	return nil
}

func (c Config) bucketConfig() jetstream.ObjectStoreConfig {
	maxBytes := c.MaxBytes
	if maxBytes == 0 {
		maxBytes = -1
	}
	return jetstream.ObjectStoreConfig{
		Bucket:      c.Bucket,
		Description: "cvsync run reports",
		TTL:         c.MaxAge,
		MaxBytes:    maxBytes,
		Storage:     jetstream.FileStorage,
	}
}
