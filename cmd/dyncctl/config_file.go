package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional --config YAML document: the same fields
// the persistent flags expose, for operators who'd rather commit one
// file per remote than repeat flags on every invocation. Grounded on
// internal/views/loader.go's yaml.Unmarshal-a-struct-from-disk pattern.
//
// Flags left at their default value are filled from the file by
// applyConfigFile; a flag set to a non-default value takes precedence.
type fileConfig struct {
	DB              string   `yaml:"db"`
	BaseURL         string   `yaml:"baseUrl"`
	Tables          []string `yaml:"tables"`
	AdapterName     string   `yaml:"adapterName"`
	InsecureSkipTLS bool     `yaml:"insecureSkipTls"`
	SyncIntervalMs  int64    `yaml:"syncIntervalMs"`
	MinLogLevel     string   `yaml:"minLogLevel"`
}

func loadConfigFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("dyncctl: read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("dyncctl: parse config file: %w", err)
	}
	return fc, nil
}

// applyConfigFile fills any flag still at its default value from fc
// (empty for db, baseUrl and tables; "default", 2000 and "info" for
// adapterName, syncIntervalMs and minLogLevel; false for
// insecureSkipTls). A flag passed explicitly with its default value is
// therefore still overridden by the file.
func applyConfigFile(fc fileConfig) {
	if flags.dbPath == "" {
		flags.dbPath = fc.DB
	}
	if flags.baseURL == "" {
		flags.baseURL = fc.BaseURL
	}
	if len(flags.tables) == 0 {
		flags.tables = fc.Tables
	}
	if flags.adapterName == "default" && fc.AdapterName != "" {
		flags.adapterName = fc.AdapterName
	}
	if !flags.insecureSkipTLS {
		flags.insecureSkipTLS = fc.InsecureSkipTLS
	}
	if flags.syncIntervalMs == 2000 && fc.SyncIntervalMs != 0 {
		flags.syncIntervalMs = fc.SyncIntervalMs
	}
	if flags.minLogLevel == "info" && fc.MinLogLevel != "" {
		flags.minLogLevel = fc.MinLogLevel
	}
}
