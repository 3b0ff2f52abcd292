// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"

	"github.com/invowk/relayhook/internal/config"
	"github.com/invowk/relayhook/internal/fetch"
	"github.com/invowk/relayhook/internal/issue"
	"github.com/invowk/relayhook/internal/loader"
	"github.com/invowk/relayhook/internal/resolve"
	"github.com/invowk/relayhook/internal/runtime"
	"github.com/invowk/relayhook/internal/telemetry"
	"github.com/invowk/relayhook/internal/transpile"
)

type (
	// sessionOptions are the per-invocation overrides of the configuration.
	sessionOptions struct {
		host     string
		executor string
		// dir, when set, serves modules from a local directory before the peer.
		dir string
	}

	// session is one loader with the engine and tracer behind it.
	session struct {
		loader   *loader.Loader
		engine   *runtime.Engine
		fetcher  *fetch.Client
		timeline *timeline
		logger   *log.Logger
		shutdown telemetry.Shutdown
	}
)

func newResolver(cfg *config.Config) *resolve.Resolver {
	return resolve.New(resolve.Options{
		Root:        string(cfg.Resolver.Root),
		DefaultBase: string(cfg.Resolver.DefaultBase),
		ModuleDir:   string(cfg.Resolver.ModuleDir),
		Aliases:     cfg.Resolver.Aliases,
	})
}

func newAdapter(cfg *config.Config) (*transpile.ESBuild, error) {
	return transpile.NewESBuild(transpile.Options{
		Target:      cfg.Transpiler.Target,
		JSXFactory:  cfg.Transpiler.JSXFactory,
		JSXFragment: cfg.Transpiler.JSXFragment,
	})
}

// newSession builds the loader stack for one invocation. Close releases it.
func newSession(ctx context.Context, cfg *config.Config, logger *log.Logger, opts sessionOptions) (*session, error) {
	host := opts.host
	if host == "" {
		host = cfg.Peer.Host
	}
	if host == "" && opts.dir != "" {
		host = "localhost"
	}
	if host == "" {
		return nil, issue.NewErrorContext().
			WithOperation("load hook").
			WithResource("peer host").
			WithSuggestions(
				"Pass --host peer.example:8080",
				"Set peer.host in the configuration file",
				"Serve a local directory with --dir",
			).
			WithIssue(issue.HookFetchFailedId).
			Wrap(loader.ErrNoHost).
			BuildError()
	}

	tp, shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     Version,
		Insecure:    cfg.Telemetry.Insecure,
		Global:      true,
	})
	if err != nil {
		return nil, err
	}

	rtLogger := logger.WithPrefix("runtime")
	engine, err := runtime.NewEngine(runtime.EngineOptions{Logger: rtLogger})
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}

	built := runtime.BuildRegistry(runtime.BuildRegistryOptions{
		Engine:       engine,
		Target:       cfg.Transpiler.Target,
		DisposeGrace: cfg.Loader.DisposeGrace,
		Logger:       rtLogger,
	})
	for _, d := range built.Diagnostics {
		rtLogger.Warn(d.Message, "code", d.Code.String())
	}

	name := opts.executor
	if name == "" {
		name = string(cfg.Loader.Executor)
	}
	executor, err := built.Registry.Get(name)
	if err != nil {
		engine.Close()
		return nil, errors.Join(newServiceError(err, issue.ExecutorUnavailableId, ""), shutdown(ctx))
	}

	adapter, err := newAdapter(cfg)
	if err != nil {
		engine.Close()
		return nil, errors.Join(err, shutdown(ctx))
	}

	fetcher := fetch.New(fetch.Options{
		Protocol: string(cfg.Peer.Protocol),
		Branch:   cfg.Peer.Branch,
		Headers:  cfg.Peer.Headers,
		Timeout:  cfg.Peer.Timeout,
	})

	tl := &timeline{}
	lopts := loader.Options{
		Host:             host,
		Engine:           engine,
		Executor:         executor,
		Fetcher:          fetcher,
		Resolver:         newResolver(cfg),
		Adapter:          adapter,
		HostModules:      cfg.Loader.HostModules,
		LenientTranspile: cfg.Loader.LenientTranspile,
		CacheMaxEntries:  cfg.Loader.CacheMaxEntries,
		Diagnostics:      tl.record,
		Logger:           logger.WithPrefix("loader"),
		TracerProvider:   tp,
	}
	if opts.dir != "" {
		lopts.HostLoader = loader.FSHostLoader{FS: os.DirFS(opts.dir)}
	}
	l, err := loader.New(lopts)
	if err != nil {
		engine.Close()
		return nil, errors.Join(err, shutdown(ctx))
	}

	return &session{
		loader:   l,
		engine:   engine,
		fetcher:  fetcher,
		timeline: tl,
		logger:   logger,
		shutdown: shutdown,
	}, nil
}

// Close stops the engine and flushes traces.
func (s *session) Close(ctx context.Context) {
	s.engine.Close()
	if err := s.shutdown(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("flush traces", "err", err)
	}
}
