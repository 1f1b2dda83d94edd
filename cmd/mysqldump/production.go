package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/ruslano69/tdtp-mysqldump/pkg/adapters"
	"github.com/ruslano69/tdtp-mysqldump/pkg/audit"
	"github.com/ruslano69/tdtp-mysqldump/pkg/brokers"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dump"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
	"github.com/ruslano69/tdtp-mysqldump/pkg/metrics"
	"github.com/ruslano69/tdtp-mysqldump/pkg/report"
	"github.com/ruslano69/tdtp-mysqldump/pkg/resilience"
	"github.com/ruslano69/tdtp-mysqldump/pkg/resultlog"
	"github.com/ruslano69/tdtp-mysqldump/pkg/retry"
	"github.com/ruslano69/tdtp-mysqldump/pkg/security"
	"github.com/ruslano69/tdtp-mysqldump/pkg/storage"
)

// Pipeline holds the connection policy and every optional post-dump step
type Pipeline struct {
	cfg *Config
	log zerolog.Logger

	audit      audit.Logger
	auditDB    *sql.DB
	auditStore *audit.DatabaseAppender // nil unless audit.database is set
	breaker    *resilience.CircuitBreaker
	retryer    *retry.Retryer
	metrics    *metrics.Metrics

	results  *resultlog.RedisPublisher
	broker   brokers.MessageBroker
	uploader *storage.Uploader

	// dev-mode Redis; nil in production
	mini *miniredis.Miniredis

	// serving disables per-run file steps (report, pushgateway)
	serving bool

	brokerMu sync.Mutex
	brokerUp bool
}

// InitPipeline initializes all production features from config
func InitPipeline(ctx context.Context, cfg *Config, log zerolog.Logger, dev bool) (p *Pipeline, err error) {
	p = &Pipeline{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	if err = p.initAudit(ctx, cfg.Audit); err != nil {
		return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	cbCfg := cfg.Resilience.CircuitBreaker
	cbCfg.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
	}
	p.breaker, err = resilience.New(cbCfg)
	if err != nil {
		return nil, err
	}

	retryCfg := cfg.Resilience.Retry
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying connect")
	}
	p.retryer, err = retry.NewRetryer(retryCfg)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		p.metrics = metrics.New(cfg.Metrics.Runtime)
	}

	if dev {
		p.mini, err = miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("dev: miniredis: %w", err)
		}
		cfg.ResultLog.Enabled = true
		cfg.ResultLog.Address = p.mini.Addr()
		cfg.ResultLog.Password = ""
		cfg.ResultLog.DB = 0
	}
	if cfg.ResultLog.Enabled {
		if cfg.ResultLog.Name == "" {
			cfg.ResultLog.Name = cfg.Database.Name()
		}
		p.results = resultlog.NewRedisPublisher(cfg.ResultLog.Config)
	}

	if cfg.Broker.Enabled {
		p.broker, err = brokers.New(cfg.Broker.Config)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Storage.S3.Enabled {
		p.uploader, err = storage.NewUploader(ctx, cfg.Storage.S3.Config)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

// initAudit builds the audit logger from config.
// Disabled audit yields a null logger.
func (p *Pipeline) initAudit(ctx context.Context, cfg AuditConfig) error {
	if !cfg.Enabled {
		p.audit = audit.NewNullLogger()
		return nil
	}

	level, err := audit.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	var appenders []audit.Appender
	fail := func(err error) error {
		for _, a := range appenders {
			a.Close()
		}
		return err
	}

	if cfg.Console {
		appenders = append(appenders, audit.NewLogAppender(p.log, level))
	}

	if cfg.File != "" {
		fileAppender, err := audit.NewFileAppender(audit.FileAppenderConfig{
			FilePath:   cfg.File,
			MaxSize:    int64(cfg.MaxSize),
			MaxBackups: cfg.MaxBackups,
			Level:      level,
			FormatJSON: cfg.JSON,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to create file appender: %w", err))
		}
		appenders = append(appenders, fileAppender)
	}

	if cfg.Database != "" {
		p.auditDB, err = sql.Open("sqlite", cfg.Database)
		if err != nil {
			return fail(fmt.Errorf("failed to open audit database: %w", err))
		}
		p.auditStore, err = audit.NewDatabaseAppender(audit.DatabaseAppenderConfig{
			DB:              p.auditDB,
			TableName:       "audit_log",
			Level:           level,
			AutoCreateTable: true,
		})
		if err != nil {
			p.auditDB.Close()
			p.auditDB = nil
			return fail(fmt.Errorf("failed to create database appender: %w", err))
		}
		appenders = append(appenders, p.auditStore)

		if cfg.Retention > 0 {
			n, err := p.auditStore.DeleteOlderThan(ctx, time.Now().Add(-cfg.Retention))
			if err != nil {
				p.log.Warn().Err(err).Msg("audit retention failed")
			} else if n > 0 {
				p.log.Info().Int64("deleted", n).Dur("retention", cfg.Retention).Msg("old audit entries removed")
			}
		}
	}

	// If no appenders configured, mirror to the process log
	if len(appenders) == 0 {
		appenders = append(appenders, audit.NewLogAppender(p.log, level))
	}

	log := p.log
	p.audit = audit.NewLogger(audit.LoggerConfig{
		Async:        cfg.Async,
		DefaultActor: security.Actor("mysqldump"),
		OnError: func(err error) {
			log.Warn().Err(err).Msg("audit write failed")
		},
	}, appenders...)
	return nil
}

// AuditStore returns the queryable audit table, nil without audit.database
func (p *Pipeline) AuditStore() *audit.DatabaseAppender {
	return p.auditStore
}

// Metrics returns the metrics set, nil when disabled
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// Connect opens the source database. Only connection errors are retried.
func (p *Pipeline) Connect(ctx context.Context) (adapters.Adapter, error) {
	start := time.Now()
	cfg := p.cfg.Database.AdapterConfig()

	var adapter adapters.Adapter
	err := p.retryer.Do(ctx, func(ctx context.Context) error {
		a, err := adapters.New(ctx, cfg)
		if err != nil {
			return err
		}
		adapter = a
		return nil
	})

	p.audit.Log(ctx, audit.NewEntry(audit.OpConnect, audit.StatusSuccess).
		WithSource(cfg.Type).
		WithDatabase(p.cfg.Database.Name()).
		WithDuration(time.Since(start)).
		WithError(err))

	if err != nil {
		return nil, err
	}
	return adapter, nil
}

// Dump connects and runs one dump with the given options.
// The circuit breaker rejects the dump while the source keeps failing.
func (p *Pipeline) Dump(ctx context.Context, opts dump.Options) (res *dump.Result, err error) {
	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		var runErr error
		res, runErr = p.dump(ctx, opts)
		return runErr
	})
	return res, err
}

func (p *Pipeline) dump(ctx context.Context, opts dump.Options) (*dump.Result, error) {
	adapter, err := p.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer adapter.Close(ctx)

	if version, err := adapter.GetDatabaseVersion(ctx); err == nil {
		p.log.Debug().Str("version", version).Str("type", adapter.GetDatabaseType()).Msg("connected")
	}

	options := []dump.Option{
		dump.WithLogger(p.log),
		dump.WithAudit(p.audit),
		dump.WithDatabase(p.cfg.Database.Name()),
	}
	if p.metrics != nil {
		options = append(options, dump.WithTableHook(p.metrics.ObserveTable))
	}

	return dump.New(adapter, opts, options...).Run(ctx)
}

// Finish runs the post-dump steps. Every step runs even if an earlier one fails;
// the first failure is returned.
func (p *Pipeline) Finish(ctx context.Context, res *dump.Result, dumpErr error) error {
	var errs []error

	dumpID := ""
	if res != nil {
		dumpID = res.ID
	}
	journal := audit.ForDump(p.audit, dumpID, p.cfg.Database.Name())

	if p.metrics != nil {
		p.metrics.ObserveDump(res, dumpErr)
	}

	if p.uploader != nil && dumpErr == nil && res != nil && res.File != "" {
		errs = append(errs, p.upload(ctx, journal, res.File))
	}

	if p.cfg.Report.File != "" && !p.serving && res != nil {
		errs = append(errs, p.step(ctx, journal, audit.OpReport, p.cfg.Report.File, func() error {
			return report.Write(res, dumpErr, p.cfg.Report.File)
		}))
	}

	event := resultlog.NewDumpResult(p.cfg.ResultLog.Name, res, dumpErr)

	if p.results != nil {
		errs = append(errs, p.step(ctx, journal, audit.OpPublish, resultlog.StateKey(p.cfg.ResultLog.Name), func() error {
			return p.results.Publish(ctx, res, dumpErr)
		}))
	}

	if p.broker != nil {
		errs = append(errs, p.step(ctx, journal, audit.OpNotify, p.broker.GetBrokerType(), func() error {
			return p.notify(ctx, event)
		}))
	}

	if p.metrics != nil && p.cfg.Metrics.PushURL != "" && !p.serving {
		errs = append(errs, p.step(ctx, journal, audit.OpPublish, p.cfg.Metrics.PushURL, func() error {
			return p.metrics.Push(ctx, p.cfg.Metrics.PushURL, p.cfg.Metrics.Job)
		}))
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) upload(ctx context.Context, journal audit.Logger, file string) error {
	start := time.Now()
	up, err := p.uploader.UploadFile(ctx, file)

	entry := audit.NewEntry(audit.OpUpload, audit.StatusSuccess).
		WithSource(file).
		WithDuration(time.Since(start)).
		WithError(err)
	if up != nil {
		entry.WithTarget(up.Bucket+"/"+up.Key).WithBytes(up.Size).WithMetadata("etag", up.ETag)
	}
	journal.Log(ctx, entry)

	if err != nil {
		p.log.Error().Err(err).Str("file", file).Msg("upload failed")
		return err
	}
	p.log.Info().
		Str("bucket", up.Bucket).
		Str("key", up.Key).
		Int64("size", up.Size).
		Dur("duration", up.Duration).
		Msg("dump uploaded")
	return nil
}

// step runs one post-dump action with audit and logging
func (p *Pipeline) step(ctx context.Context, journal audit.Logger, op audit.Operation, target string, fn func() error) error {
	start := time.Now()
	err := fn()

	journal.Log(ctx, audit.NewEntry(op, audit.StatusSuccess).
		WithTarget(target).
		WithDuration(time.Since(start)).
		WithError(err))

	if err != nil {
		p.log.Error().Err(err).Str("step", string(op)).Str("target", target).Msg("post-dump step failed")
		return fmt.Errorf("%s %s: %w", op, target, err)
	}
	p.log.Debug().Str("step", string(op)).Str("target", target).Msg("post-dump step done")
	return nil
}

// notify connects lazily; the broker is shared between serve requests
func (p *Pipeline) notify(ctx context.Context, event resultlog.DumpResult) error {
	p.brokerMu.Lock()
	defer p.brokerMu.Unlock()

	if !p.brokerUp {
		if err := p.broker.Connect(ctx); err != nil {
			return err
		}
		p.brokerUp = true
	}
	return brokers.Notify(ctx, p.broker, event)
}

// Close closes all production features
func (p *Pipeline) Close() error {
	var errs []error

	if p.broker != nil && p.brokerUp {
		errs = append(errs, p.broker.Close())
	}
	if p.results != nil {
		errs = append(errs, p.results.Close())
	}
	if p.audit != nil {
		if err := p.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit logger: %w", err))
		}
	}
	if p.auditDB != nil {
		errs = append(errs, p.auditDB.Close())
	}
	if p.mini != nil {
		p.mini.Close()
	}

	return errors.Join(errs...)
}

// exitCode maps a failure to the process exit status
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if dumperr.Fatal(err) {
		return 2
	}
	return 1
}
