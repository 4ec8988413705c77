// Package store persists generated documents so they can be downloaded by
// name later.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/picklr-io/ocrstack/internal/config"
)

var (
	// ErrNotFound is returned by Get when no object has the given name.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidName is returned for names that would escape the store.
	ErrInvalidName = errors.New("invalid file name")
)

// Store defines the interface for document storage.
type Store interface {
	// Put saves data under name, replacing any previous object.
	Put(ctx context.Context, name string, data []byte, contentType string) error

	// Get loads the object stored under name.
	Get(ctx context.Context, name string) ([]byte, error)

	String() string
}

// New returns an S3 store when an output bucket is configured, a local
// directory store otherwise.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.OutputBucket == "" {
		return NewLocal(cfg.OutputDir), nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewS3(s3.NewFromConfig(awsCfg), cfg.OutputBucket, "documents/"), nil
}

// ValidateName rejects empty names and anything containing a path element.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}
