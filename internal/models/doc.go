// Package models defines the domain types for the forró pair curator.
//
// The package contains two categories of types:
//
// 1. Stored records:
//   - [TrackPair] : a Brazilian cover and the original it is based on, plus reconciliation state
//   - [Availability] : tri-state catalog availability of one side of a pair
//
// 2. Catalog data transfer objects:
//   - [CatalogTrack] : the single best match returned by a catalog search
//
// Identity rules live here as well. [Validate] reports empty identity fields, [FindDuplicate]
// and the [Deduper] interface detect case-insensitive duplicates, and [SimilarPairs] surfaces
// near-duplicates for warnings.
package models
