// Package source discovers bronze files and reads their raw rows. Vendor
// parsers are external to the pipeline; this package ships the discovery
// scanner and a reference parser for zstd-compressed CSV drops.
package source

import "time"

// FileMetadata identifies one discovered bronze file. Vendor, data type,
// path and content hash together form the idempotency identity.
type FileMetadata struct {
	Vendor       string
	DataType     string
	Path         string
	ContentHash  string
	DiscoveredAt time.Time
}
