// Command gitdrop runs the archive-to-repository synchronization server.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/gitdrop/gitdrop/internal/config"
	handlerhttp "github.com/gitdrop/gitdrop/internal/handler/http"
	"github.com/gitdrop/gitdrop/internal/identity"
	"github.com/gitdrop/gitdrop/internal/logger"
	"github.com/gitdrop/gitdrop/internal/objectstore"
	"github.com/gitdrop/gitdrop/internal/server"
	"github.com/gitdrop/gitdrop/internal/treesync"
	"github.com/gitdrop/gitdrop/internal/vcs"
)

func main() {
	log := logger.New("server")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := objectstore.NewFromConfig(ctx, cfg.AWSRegion, cfg.UploadBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("constructing object store client")
	}

	ids := identity.NewClient(identity.Config{
		EndpointURL: cfg.AuthorizerURL,
		Timeout:     cfg.AuthorizerTimeout,
	})

	backend := vcs.NewGitBackend(osfs.New(cfg.RepoRoot))

	synchronizer := treesync.New(backend, vcs.Signature{
		Name:  cfg.AuthorName,
		Email: cfg.AuthorEmail,
	}, cfg.CommitMessage)

	handler := handlerhttp.NewHandler(ids, store, synchronizer, cfg.DefaultBranch, log)

	srv := server.New(cfg.Address, handler.Init(), log)
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}

	log.Info().Msg("server stopped")
}
