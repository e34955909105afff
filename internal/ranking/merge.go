package ranking

import (
	"sort"

	"github.com/amirunpri2018/image-space/internal/iqr"
	"github.com/amirunpri2018/image-space/internal/solr"
)

// ScoredDocument is an index document annotated with the engine
// confidence of its representative checksum.
type ScoredDocument struct {
	Document        solr.Document `json:"document"`
	MatchConfidence float64       `json:"match_confidence"`
	Checksum        string        `json:"checksum"`
}

// ResultPage is one ordered window of merged results. TotalResults is the
// engine's full match count, not the page length.
type ResultPage struct {
	TotalResults int              `json:"total_results"`
	Docs         []ScoredDocument `json:"docs"`
}

// EmptyPage is the degraded response when no usable ranking data exists.
// A well-formed empty page keeps session listing UIs responsive where a
// propagated error would not.
func EmptyPage() *ResultPage {
	return &ResultPage{TotalResults: 0, Docs: []ScoredDocument{}}
}

// ConsistencyFault describes a checksum present on one side of the
// engine/index join but missing from the other.
type ConsistencyFault struct {
	SID      string `json:"sid"`
	Checksum string `json:"checksum"`
}

// Checksums extracts the checksum sequence from ranked entries, in rank order.
func Checksums(entries []iqr.RankedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Checksum
	}
	return out
}

// Merge joins ranked (checksum, confidence) entries against resolved
// index documents and produces a deterministically ordered page.
//
// Documents whose representative checksum the engine never ranked, and
// ranked checksums no document resolved to, are reported as consistency
// faults; the documents involved are dropped rather than failing the
// merge. Duplicate checksums in entries are tolerated, last write wins.
func Merge(sid string, totalResults int, entries []iqr.RankedEntry, docs []solr.Document, checksumField string) (*ResultPage, []ConsistencyFault) {
	confidence := make(map[string]float64, len(entries))
	for _, e := range entries {
		confidence[e.Checksum] = e.Confidence
	}

	var faults []ConsistencyFault
	matched := make(map[string]bool, len(entries))
	scored := make([]ScoredDocument, 0, len(docs))

	for _, doc := range docs {
		sum := doc.RepresentativeChecksum(checksumField)
		conf, ok := confidence[sum]
		if !ok {
			// The index surfaced a document the engine never ranked
			// (or the document carries no usable checksum field).
			faults = append(faults, ConsistencyFault{SID: sid, Checksum: sum})
			continue
		}
		matched[sum] = true
		scored = append(scored, ScoredDocument{
			Document:        doc,
			MatchConfidence: conf,
			Checksum:        sum,
		})
	}

	// The reverse direction: engine-ranked checksums that resolved to no
	// document at all.
	for _, e := range entries {
		if !matched[e.Checksum] {
			faults = append(faults, ConsistencyFault{SID: sid, Checksum: e.Checksum})
			matched[e.Checksum] = true
		}
	}

	// Confidence descending, then representative checksum descending so
	// duplicate-group members sharing a confidence stay adjacent and the
	// order is reproducible across calls.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].MatchConfidence != scored[j].MatchConfidence {
			return scored[i].MatchConfidence > scored[j].MatchConfidence
		}
		return scored[i].Checksum > scored[j].Checksum
	})

	return &ResultPage{TotalResults: totalResults, Docs: scored}, faults
}
