// Package constants provides shared constants used throughout the lumea codebase.
// This includes timeouts, file permissions, staging layout and the
// fixed strings written into the canonical tables.
package constants

import "time"

// Timeout constants
const (
	// DefaultHTTPTimeout is the timeout for requests to the catalog API and scraped page
	DefaultHTTPTimeout = 30 * time.Second

	// DocumentStoreTimeout bounds connecting to and reading from the document store
	DocumentStoreTimeout = 2 * time.Minute

	// ShutdownTimeout is how long cleanup may take after a failed run
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Staging layout
const (
	// StageExtract holds one snapshot per source as handed over by the adapters
	StageExtract = "extract"

	// StageReconciled holds the canonical tables after reconciliation
	StageReconciled = "reconciled"

	// SnapshotExtension is the file extension of staged snapshots
	SnapshotExtension = ".csv"

	// DefaultStagingDir is used when LUMEA_STAGING_DIR is unset
	DefaultStagingDir = "data"

	// DefaultDBPath is used when LUMEA_DB_PATH is unset
	DefaultDBPath = "bdd/lumea.sqlite"
)

// Reconciliation defaults
const (
	// DefaultPrecision is the number of decimals kept when rounding
	// coordinates for site identity keys (4 decimals is about 11 m).
	DefaultPrecision = 4

	// MaxPrecision caps the configurable precision
	MaxPrecision = 9
)

// Fixed values written into canonical tables
const (
	// DescriptionMissing replaces an empty site description
	DescriptionMissing = "Description non renseignée"

	// DescriptionWithheld replaces a description that looks like a personal name
	DescriptionWithheld = "Description disponible sur demande"

	// PlaceLabel prefixes synthetic names of anonymized places
	PlaceLabel = "Lieu"

	// ActivityLabel prefixes synthetic names of anonymized activities
	ActivityLabel = "Activité"

	// UnknownInsee is the filler some sources use for a missing INSEE code
	UnknownInsee = "00000"
)
