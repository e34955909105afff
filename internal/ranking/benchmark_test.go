package ranking

import (
	"fmt"
	"testing"

	"github.com/amirunpri2018/image-space/internal/iqr"
	"github.com/amirunpri2018/image-space/internal/solr"
)

func benchmarkInputs(n int) ([]iqr.RankedEntry, []solr.Document) {
	entries := make([]iqr.RankedEntry, n)
	docs := make([]solr.Document, n)
	for i := 0; i < n; i++ {
		sum := fmt.Sprintf("%040x", i)
		entries[i] = iqr.RankedEntry{Checksum: sum, Confidence: float64(n-i) / float64(n)}
		docs[i] = solr.Document{"id": fmt.Sprintf("img-%d", i), checksumField: sum}
	}
	return entries, docs
}

func BenchmarkMerge(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		entries, docs := benchmarkInputs(n)
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Merge("bench", n, entries, docs, checksumField)
			}
		})
	}
}
