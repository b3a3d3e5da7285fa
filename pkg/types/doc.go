// Package types provides shared type definitions used across the lumea packages.
//
// SourceID and EntityType are referenced by sources, authority, conflict,
// provenance and reconciler; keeping them here avoids import cycles.
//
//nolint:revive // Package name 'types' is appropriate for common type definitions
package types
