// Package config is the engine's host-facing configuration surface
// (spec §6.2): a validated, functional-options struct covering the sync
// interval, the missing-remote-record and conflict-resolution
// strategies, the two lifecycle callbacks, and the injected logger.
//
// Grounded on the teacher's internal/config.Config, which validates a
// loaded struct via go-playground/validator's validator.New().Struct;
// generalized from the teacher's JSON-file-backed connector config to an
// in-process functional-options builder, since the engine's config is
// constructed by the embedding host rather than read from a config file
// on disk.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"dync/conflict"
	"dync/dynclog"
	"dync/store"
)

// MissingRemoteRecordStrategy selects the §4.7 behavior when a push
// update is told the remote record no longer exists.
type MissingRemoteRecordStrategy string

const (
	Ignore             MissingRemoteRecordStrategy = "ignore"
	DeleteLocalRecord  MissingRemoteRecordStrategy = "delete-local-record"
	InsertRemoteRecord MissingRemoteRecordStrategy = "insert-remote-record"
)

// conflictStrategyValue maps spec §6.2's string enum to the conflict
// package's Strategy type.
var conflictStrategyValue = map[string]conflict.Strategy{
	"try-shallow-merge": conflict.TryShallowMerge,
	"local-wins":        conflict.LocalWins,
	"remote-wins":       conflict.RemoteWins,
}

// OnAfterRemoteAddFunc is invoked after a local add is echoed back by the
// remote with a server id (spec §6.2).
type OnAfterRemoteAddFunc func(table string, rec store.Record)

// OnAfterMissingRemoteRecordFunc is invoked whenever §4.7's strategy
// fires.
type OnAfterMissingRemoteRecordFunc func(strategy MissingRemoteRecordStrategy, rec store.Record)

// Config is the validated set of engine options (spec §6.2). Build one
// with New, never by struct literal, so defaults and validation always
// apply.
type Config struct {
	SyncIntervalMs                           int64                          `validate:"gte=0"`
	MinLogLevel                              string                         `validate:"oneof=debug info warn error none"`
	MissingRemoteRecordDuringUpdateStrategy   MissingRemoteRecordStrategy    `validate:"oneof=ignore delete-local-record insert-remote-record"`
	ConflictResolutionStrategyName            string                         `validate:"oneof=try-shallow-merge local-wins remote-wins"`
	OnAfterRemoteAdd                          OnAfterRemoteAddFunc           `validate:"-"`
	OnAfterMissingRemoteRecordDuringUpdate    OnAfterMissingRemoteRecordFunc `validate:"-"`
	Logger                                    *dynclog.Logger                `validate:"-"`
	// BoolFields names, per table, the fields that table's remote back-end
	// stores as 0/1 in place of a native boolean column (spec §4.2). Leave
	// a table out entirely when its back-end stores booleans natively.
	BoolFields map[string][]string `validate:"-"`
}

// ConflictResolutionStrategy resolves the configured name to the
// conflict package's Strategy enum.
func (c Config) ConflictResolutionStrategy() conflict.Strategy {
	return conflictStrategyValue[c.ConflictResolutionStrategyName]
}

// LogLevel resolves MinLogLevel to a dynclog.Level.
func (c Config) LogLevel() dynclog.Level { return dynclog.ParseLevel(c.MinLogLevel) }

// Option mutates a Config under construction.
type Option func(*Config)

// WithSyncIntervalMs sets the periodic tick interval; 0 disables the
// periodic tick entirely (spec §6.2).
func WithSyncIntervalMs(ms int64) Option {
	return func(c *Config) { c.SyncIntervalMs = ms }
}

// WithMinLogLevel sets the minimum level the injected logger emits at.
func WithMinLogLevel(level string) Option {
	return func(c *Config) { c.MinLogLevel = level }
}

// WithMissingRemoteRecordStrategy overrides the §4.7 default.
func WithMissingRemoteRecordStrategy(s MissingRemoteRecordStrategy) Option {
	return func(c *Config) { c.MissingRemoteRecordDuringUpdateStrategy = s }
}

// WithConflictResolutionStrategy overrides the §4.4 default. Accepts
// "try-shallow-merge", "local-wins", or "remote-wins".
func WithConflictResolutionStrategy(name string) Option {
	return func(c *Config) { c.ConflictResolutionStrategyName = name }
}

// WithOnAfterRemoteAdd registers the §6.2 lifecycle callback.
func WithOnAfterRemoteAdd(fn OnAfterRemoteAddFunc) Option {
	return func(c *Config) { c.OnAfterRemoteAdd = fn }
}

// WithOnAfterMissingRemoteRecordDuringUpdate registers the §6.2
// lifecycle callback.
func WithOnAfterMissingRemoteRecordDuringUpdate(fn OnAfterMissingRemoteRecordFunc) Option {
	return func(c *Config) { c.OnAfterMissingRemoteRecordDuringUpdate = fn }
}

// WithLogger injects the logger the engine and its subpackages log
// through. If never set, New builds one at the configured MinLogLevel
// writing to stderr.
func WithLogger(l *dynclog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithBoolFields declares, per table, the fields that table's remote
// back-end stores as integer-booleans (spec §4.2). Omit a table when its
// back-end stores booleans natively.
func WithBoolFields(fields map[string][]string) Option {
	return func(c *Config) { c.BoolFields = fields }
}

// defaults returns the spec §6.2 stated defaults. Logger is left nil here
// (not dynclog.Default()) so New can tell an unset logger apart from one
// WithLogger explicitly injected, and build it at the configured
// MinLogLevel instead of silently defaulting to Info.
func defaults() Config {
	return Config{
		SyncIntervalMs:                         2000,
		MinLogLevel:                            "info",
		MissingRemoteRecordDuringUpdateStrategy: InsertRemoteRecord,
		ConflictResolutionStrategyName:          "try-shallow-merge",
	}
}

// New builds a Config from the stated defaults plus opts, then
// validates it.
func New(opts ...Option) (*Config, error) {
	cfg := defaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = dynclog.New(cfg.LogLevel(), nil)
	}
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
