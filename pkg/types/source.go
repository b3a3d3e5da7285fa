//nolint:revive // Package types provides common type definitions
package types

import "slices"

// SourceID identifies one of the upstream systems feeding the pipeline.
type SourceID string

// String returns the string representation of a source ID.
func (id SourceID) String() string {
	return string(id)
}

// Source identifiers, one per extraction adapter.
const (
	// CatalogAPI is the remote open-data catalog of heritage-labelled communes.
	CatalogAPI SourceID = "catalog_api"

	// DocumentStore is the document database of tourist sites.
	DocumentStore SourceID = "document_store"

	// RelationalStaging is the staging database holding the administrative geography.
	RelationalStaging SourceID = "relational_staging"

	// FlatFile is the delimited export of tourist activities.
	FlatFile SourceID = "flat_file"

	// ScrapedPage is the HTML page listing regional names.
	ScrapedPage SourceID = "scraped_page"
)

// SourceIDs returns all source identifiers in extraction order.
func SourceIDs() []SourceID {
	return []SourceID{
		CatalogAPI,
		DocumentStore,
		RelationalStaging,
		FlatFile,
		ScrapedPage,
	}
}

// IsValid returns true if the SourceID is one of the defined constants.
func (id SourceID) IsValid() bool {
	return slices.Contains(SourceIDs(), id)
}
