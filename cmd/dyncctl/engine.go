package main

import (
	"fmt"
	"net/url"

	"dync/adapter"
	"dync/config"
	"dync/controller"
	"dync/credentials"
	"dync/dynclog"
	"dync/store/sqlstore"
)

// buildController opens the sqlstore database and a CRUD-mode HTTP
// adapter for every configured --table, resolving credentials the same
// priority order the engine's credentials package documents, then
// constructs the controller. Grounded on getSyncBackends in
// cmd/gosynctasks/sync.go: one helper every subcommand calls rather than
// repeating backend construction per command.
func buildController() (*controller.Controller, error) {
	if flags.configPath != "" {
		fc, err := loadConfigFile(flags.configPath)
		if err != nil {
			return nil, err
		}
		applyConfigFile(fc)
	}

	if len(flags.tables) == 0 {
		return nil, fmt.Errorf("dyncctl: at least one --table is required")
	}
	if flags.baseURL == "" {
		return nil, fmt.Errorf("dyncctl: --base-url is required")
	}
	base, err := url.Parse(flags.baseURL)
	if err != nil {
		return nil, fmt.Errorf("dyncctl: parse --base-url: %w", err)
	}

	creds, err := credentials.NewResolver().Resolve(flags.adapterName, base.User.Username(), base)
	if err != nil {
		creds = nil // unauthenticated remotes are valid; adapter.HTTPTable tolerates a nil Creds
	}

	s, err := sqlstore.Open(flags.dbPath)
	if err != nil {
		return nil, fmt.Errorf("dyncctl: open store: %w", err)
	}

	tables := make(map[string]adapter.CRUDTable, len(flags.tables))
	for _, table := range flags.tables {
		tables[table] = &adapter.HTTPTable{
			Table:           table,
			BaseURL:         flags.baseURL + "/" + table,
			Creds:           creds,
			InsecureSkipTLS: flags.insecureSkipTLS,
		}
	}

	cfg, err := config.New(
		config.WithSyncIntervalMs(flags.syncIntervalMs),
		config.WithMinLogLevel(flags.minLogLevel),
		config.WithLogger(dynclog.New(dynclog.ParseLevel(flags.minLogLevel), nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("dyncctl: build config: %w", err)
	}

	return controller.New(s, adapter.NewCRUD(tables), flags.tables, cfg)
}
