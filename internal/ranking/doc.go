// Package ranking joins engine confidence scores with document index
// records to build ordered result pages.
//
// Basic Usage:
//
//	total, entries, err := engine.FetchResults(ctx, sid, offset, limit)
//	docs, err := index.ResolveByChecksum(ctx, ranking.Checksums(entries))
//	page, faults := ranking.Merge(sid, total, entries, docs, index.ChecksumField())
//
// The merge is deterministic: documents are ordered by confidence
// descending with the representative checksum (descending) as tie-break,
// so duplicate-group members sharing a confidence value stay adjacent and
// repeated calls over identical inputs produce identical pages.
//
// Consistency faults (a ranked checksum with no index document, or a
// document whose checksum the engine never ranked) are returned as data
// rather than errors. Offending documents are dropped from the page; the
// caller records the diagnostics.
package ranking
