// config.go - Haupt-Konfigurationsfunktionen fuer constfold
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (CONSTFOLD_DEBUG)
// - FoldWorkers: Gibt die Anzahl paralleler Hintergrund-Folds zurueck (CONSTFOLD_FOLD_WORKERS)
// - ResourceDir: Gibt das Verzeichnis fuer dense_resource-Blobs zurueck (CONSTFOLD_RESOURCE_DIR)
// - Var: Liest eine Environment-Variable
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Feature-Flags
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via CONSTFOLD_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("CONSTFOLD_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// FoldWorkers gibt die maximale Anzahl gleichzeitiger Hintergrund-Folds zurueck
// Konfigurierbar via CONSTFOLD_FOLD_WORKERS
// 0 = Default (GOMAXPROCS)
func FoldWorkers() int {
	if n := foldWorkers(); n > 0 {
		return int(n)
	}
	return runtime.GOMAXPROCS(0)
}

var foldWorkers = Uint("CONSTFOLD_FOLD_WORKERS", 0)

// ResourceDir gibt das Verzeichnis zurueck, aus dem die CLI Blobs ohne Pfad laedt
// Konfigurierbar via CONSTFOLD_RESOURCE_DIR
// Default: aktuelles Verzeichnis
func ResourceDir() string {
	if s := resourceDir(); s != "" {
		return s
	}
	return "."
}

var resourceDir = String("CONSTFOLD_RESOURCE_DIR")

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
