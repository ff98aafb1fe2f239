package kernel

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/surulere15/CONTINUUM-sub000/pkg/artifacts"
	"github.com/surulere15/CONTINUUM-sub000/pkg/audit"
	"github.com/surulere15/CONTINUUM-sub000/pkg/canon"
	"github.com/surulere15/CONTINUUM-sub000/pkg/config"
	"github.com/surulere15/CONTINUUM-sub000/pkg/keyring"
	"github.com/surulere15/CONTINUUM-sub000/pkg/observability"
	"github.com/surulere15/CONTINUUM-sub000/pkg/stabilization"
)

// exportPurpose is the keyring derivation label for audit export keys.
const exportPurpose = "audit-export"

// Open builds a kernel from process configuration: audit sink, guard
// history, override authority, export signer, archive, canon history and
// telemetry. If cfg.CanonDir is set the canon found there is loaded before
// returning.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Kernel, error) {
	var closers []func() error
	fail := func(err error) (*Kernel, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	profile := config.DefaultProfile()
	if cfg.ProfilePath != "" {
		p, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return fail(err)
		}
		profile = p
	}

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	log, err := audit.Open(ctx, sink)
	if err != nil {
		_ = sink.Close()
		return fail(fmt.Errorf("open audit log: %w", err))
	}

	guardOpts := []stabilization.Option{stabilization.WithMaxNormalizations(profile.MaxNormalizations)}
	if cfg.RedisAddr != "" {
		history := stabilization.NewRedisHistory(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "")
		closers = append(closers, history.Close)
		if err := history.Ping(ctx); err != nil {
			_ = log.Close()
			return fail(fmt.Errorf("connect stabilization history: %w", err))
		}
		guardOpts = append(guardOpts, stabilization.WithHistory(history))
	}
	if cfg.OverridePublicKey != "" {
		pub, err := base64.StdEncoding.DecodeString(cfg.OverridePublicKey)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			_ = log.Close()
			return fail(fmt.Errorf("override public key must be a base64 Ed25519 key"))
		}
		guardOpts = append(guardOpts, stabilization.WithAuthorizer(stabilization.NewJWTAuthorizer(ed25519.PublicKey(pub))))
	}

	signer, err := exportSigner(cfg.SigningSeed)
	if err != nil {
		_ = log.Close()
		return fail(err)
	}

	store, err := artifacts.NewStore(ctx, cfg.Archive)
	if err != nil {
		_ = log.Close()
		return fail(fmt.Errorf("open archive: %w", err))
	}
	if c, ok := store.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	var canons canon.Store = canon.NewMemoryStore()
	if store != nil {
		if canons, err = canon.OpenArchiveStore(ctx, store, cfg.CanonHead); err != nil {
			_ = log.Close()
			return fail(fmt.Errorf("open canon history: %w", err))
		}
	} else if cfg.CanonHead != "" {
		_ = log.Close()
		return fail(fmt.Errorf("canon head %s requires an archive backend", cfg.CanonHead))
	}

	otel := observability.DefaultConfig()
	otel.Enabled = cfg.TelemetryEnabled
	otel.OTLPEndpoint = cfg.OTLPEndpoint
	otel.ServiceName = cfg.ServiceName
	telemetry, err := observability.New(ctx, otel)
	if err != nil {
		_ = log.Close()
		return fail(err)
	}

	all := []Option{
		WithProfile(profile),
		WithAuditLog(log),
		WithGuard(stabilization.NewGuard(guardOpts...)),
		WithSigner(signer),
		WithArchive(store),
		WithCanonStore(canons),
		WithTelemetry(telemetry),
	}
	for _, fn := range closers {
		all = append(all, WithCloser(fn))
	}
	k, err := New(ctx, append(all, opts...)...)
	if err != nil {
		_ = log.Close()
		return fail(err)
	}

	if cfg.CanonDir != "" {
		raw, err := canon.LoadDir(cfg.CanonDir)
		if err != nil {
			_ = k.Close(ctx)
			return nil, err
		}
		if _, err := k.LoadCanon(ctx, raw); err != nil {
			_ = k.Close(ctx)
			return nil, fmt.Errorf("load canon from %s: %w", cfg.CanonDir, err)
		}
	}
	return k, nil
}

func openSink(ctx context.Context, cfg *config.Config) (audit.Sink, error) {
	switch cfg.AuditSink {
	case "", config.SinkMemory:
		return audit.NewMemorySink(), nil
	case config.SinkFile:
		if err := os.MkdirAll(filepath.Dir(cfg.AuditPath), 0o750); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
		sink, err := audit.NewFileSink(cfg.AuditPath)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.SinkSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.AuditPath), 0o750); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
		sink, err := audit.NewSQLiteSink(ctx, cfg.AuditPath)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.SinkPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("DB ping failed: %w", err)
		}
		sink, err := audit.NewPostgresSink(ctx, db)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unsupported audit sink: %s", cfg.AuditSink)
	}
}

// exportSigner derives the audit export key from seed, or from a fresh
// key when seed is empty.
func exportSigner(seed string) (*keyring.Keyring, error) {
	var (
		provider *keyring.MemoryKeyProvider
		err      error
	)
	if seed == "" {
		provider, err = keyring.NewMemoryKeyProvider()
	} else {
		provider, err = keyring.NewMemoryKeyProviderFromBase64(seed)
	}
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	root, err := keyring.New(provider)
	if err != nil {
		return nil, err
	}
	return root.Derive(exportPurpose)
}
