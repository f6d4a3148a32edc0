// Package config loads the gitdrop server configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime setting of the gitdrop server.
//
// The commit author and message are policy, not invariants: changing them
// alters commit metadata only, never the synchronized tree.
type Config struct {
	// Address is the host:port the HTTP server listens on.
	Address string `env:"RUN_ADDRESS" envDefault:":8080"`

	// UploadBucket is the S3 bucket holding uploaded archives.
	UploadBucket string `env:"UPLOAD_BUCKET,required,notEmpty"`

	// AuthorizerURL is the identity endpoint that resolves bearer tokens.
	AuthorizerURL string `env:"AUTHORIZER_ENDPOINT_URL,required,notEmpty"`

	// AuthorizerTimeout bounds a single token-resolution round trip.
	AuthorizerTimeout time.Duration `env:"AUTHORIZER_TIMEOUT" envDefault:"15s"`

	// AWSRegion selects the region for the S3 client.
	AWSRegion string `env:"AWS_REGION" envDefault:"us-east-1"`

	// RepoRoot is the directory holding the bare per-user repositories.
	RepoRoot string `env:"REPO_ROOT" envDefault:"/var/lib/gitdrop/repos"`

	// DefaultBranch is used when a push request names no branch.
	DefaultBranch string `env:"DEFAULT_BRANCH" envDefault:"main"`

	// AuthorName and AuthorEmail sign every synchronization commit.
	AuthorName  string `env:"COMMIT_AUTHOR_NAME" envDefault:"gitdrop"`
	AuthorEmail string `env:"COMMIT_AUTHOR_EMAIL" envDefault:"gitdrop@localhost"`

	// CommitMessage is the fixed message of every synchronization commit.
	CommitMessage string `env:"COMMIT_MESSAGE" envDefault:"Synchronized uploaded archive"`
}

// Load parses the configuration from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment configuration: %w", err)
	}

	return &cfg, nil
}
