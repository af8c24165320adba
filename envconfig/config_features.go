// config_features.go - Feature-Flags
//
// Dieses Modul enthaelt:
// - BackgroundFolding: Folding-Cache und asynchrone Folds
// - WaitPending: Lookup-Politik fuer laufende Folds
package envconfig

var (
	// BackgroundFolding aktiviert den Folding-Cache eines Kontexts (Default: true)
	BackgroundFolding = BoolWithDefault("CONSTFOLD_BACKGROUND_FOLDING")

	// WaitPending laesst Lookups auf laufende Folds warten statt sie als Miss zu werten
	WaitPending = Bool("CONSTFOLD_WAIT_PENDING")
)
