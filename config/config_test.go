package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dync/conflict"
	"dync/dynclog"
	"dync/store"
)

func TestNewAppliesDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)
	require.EqualValues(t, 2000, cfg.SyncIntervalMs)
	require.Equal(t, "info", cfg.MinLogLevel)
	require.Equal(t, InsertRemoteRecord, cfg.MissingRemoteRecordDuringUpdateStrategy)
	require.Equal(t, conflict.TryShallowMerge, cfg.ConflictResolutionStrategy())
	require.NotNil(t, cfg.Logger)
}

func TestOptionsOverrideDefaults(t *testing.T) {
	cfg, err := New(
		WithSyncIntervalMs(0),
		WithMinLogLevel("debug"),
		WithMissingRemoteRecordStrategy(Ignore),
		WithConflictResolutionStrategy("remote-wins"),
	)
	require.NoError(t, err)
	require.EqualValues(t, 0, cfg.SyncIntervalMs)
	require.Equal(t, dynclog.Debug, cfg.LogLevel())
	require.Equal(t, Ignore, cfg.MissingRemoteRecordDuringUpdateStrategy)
	require.Equal(t, conflict.RemoteWins, cfg.ConflictResolutionStrategy())
}

func TestMinLogLevelBuildsLoggerAtThatLevelWhenNoneInjected(t *testing.T) {
	cfg, err := New(WithMinLogLevel("error"))
	require.NoError(t, err)
	require.Equal(t, dynclog.Error, cfg.Logger.Level())
}

func TestExplicitLoggerOverridesMinLogLevel(t *testing.T) {
	injected := dynclog.New(dynclog.Debug, nil)
	cfg, err := New(WithMinLogLevel("error"), WithLogger(injected))
	require.NoError(t, err)
	require.Same(t, injected, cfg.Logger)
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	_, err := New(WithConflictResolutionStrategy("bogus"))
	require.Error(t, err)
}

func TestNewRejectsNegativeSyncInterval(t *testing.T) {
	_, err := New(WithSyncIntervalMs(-1))
	require.Error(t, err)
}

func TestCallbacksAreInvokable(t *testing.T) {
	var gotTable string
	cfg, err := New(WithOnAfterRemoteAdd(func(table string, _ store.Record) {
		gotTable = table
	}))
	require.NoError(t, err)
	cfg.OnAfterRemoteAdd("tasks", nil)
	require.Equal(t, "tasks", gotTable)
}
