package ranking

import (
	"reflect"
	"testing"

	"github.com/amirunpri2018/image-space/internal/iqr"
	"github.com/amirunpri2018/image-space/internal/solr"
)

const checksumField = "sha1sum_s_md"

func doc(id string, checksum any) solr.Document {
	return solr.Document{
		"id":          id,
		checksumField: checksum,
	}
}

func TestMerge_OrdersByConfidenceThenChecksum(t *testing.T) {
	entries := []iqr.RankedEntry{
		{Checksum: "a1", Confidence: 0.9},
		{Checksum: "a2", Confidence: 0.9},
		{Checksum: "a3", Confidence: 0.4},
	}
	docs := []solr.Document{
		doc("img-3", "a3"),
		doc("img-1", "a1"),
		doc("img-2", "a2"),
	}

	page, faults := Merge("sid-1", 3, entries, docs, checksumField)
	if len(faults) != 0 {
		t.Fatalf("expected no faults, got %v", faults)
	}
	if page.TotalResults != 3 {
		t.Errorf("expected total 3, got %d", page.TotalResults)
	}

	got := make([]string, len(page.Docs))
	for i, d := range page.Docs {
		got[i] = d.Checksum
	}
	// Equal confidences break the tie on checksum descending, so a2
	// precedes a1.
	want := []string{"a2", "a1", "a3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestMerge_Deterministic(t *testing.T) {
	entries := []iqr.RankedEntry{
		{Checksum: "b1", Confidence: 0.5},
		{Checksum: "b2", Confidence: 0.5},
		{Checksum: "b3", Confidence: 0.5},
	}
	docs := []solr.Document{
		doc("x", "b2"),
		doc("y", "b3"),
		doc("z", "b1"),
	}

	first, _ := Merge("sid-1", 3, entries, docs, checksumField)
	for i := 0; i < 10; i++ {
		again, _ := Merge("sid-1", 3, entries, docs, checksumField)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("merge not deterministic: run %d differs", i)
		}
	}
}

func TestMerge_DocWithoutRankedChecksum(t *testing.T) {
	entries := []iqr.RankedEntry{
		{Checksum: "c1", Confidence: 0.8},
	}
	docs := []solr.Document{
		doc("good", "c1"),
		doc("stray", "c9"),
	}

	page, faults := Merge("sid-1", 1, entries, docs, checksumField)
	if len(page.Docs) != 1 || page.Docs[0].Checksum != "c1" {
		t.Fatalf("expected only c1 to survive, got %+v", page.Docs)
	}
	if len(faults) != 1 || faults[0].Checksum != "c9" {
		t.Fatalf("expected one fault for c9, got %v", faults)
	}
	if faults[0].SID != "sid-1" {
		t.Errorf("fault should carry the sid, got %q", faults[0].SID)
	}
}

func TestMerge_RankedChecksumWithoutDoc(t *testing.T) {
	entries := []iqr.RankedEntry{
		{Checksum: "d1", Confidence: 0.8},
		{Checksum: "d2", Confidence: 0.6},
	}
	docs := []solr.Document{
		doc("only", "d1"),
	}

	page, faults := Merge("sid-1", 2, entries, docs, checksumField)
	if len(page.Docs) != 1 {
		t.Fatalf("expected one doc, got %d", len(page.Docs))
	}
	if len(faults) != 1 || faults[0].Checksum != "d2" {
		t.Fatalf("expected one fault for d2, got %v", faults)
	}
}

func TestMerge_FaultRecordedOncePerChecksum(t *testing.T) {
	// The same unresolved checksum ranked twice must fault once.
	entries := []iqr.RankedEntry{
		{Checksum: "e1", Confidence: 0.7},
		{Checksum: "e1", Confidence: 0.7},
	}

	_, faults := Merge("sid-1", 2, entries, nil, checksumField)
	if len(faults) != 1 {
		t.Fatalf("expected exactly one fault, got %v", faults)
	}
}

func TestMerge_DuplicateEntriesLastWriteWins(t *testing.T) {
	entries := []iqr.RankedEntry{
		{Checksum: "f1", Confidence: 0.2},
		{Checksum: "f1", Confidence: 0.9},
	}
	docs := []solr.Document{doc("img", "f1")}

	page, faults := Merge("sid-1", 1, entries, docs, checksumField)
	if len(faults) != 0 {
		t.Fatalf("expected no faults, got %v", faults)
	}
	if len(page.Docs) != 1 || page.Docs[0].MatchConfidence != 0.9 {
		t.Fatalf("expected last confidence 0.9 to win, got %+v", page.Docs)
	}
}

func TestMerge_DuplicateGroupRepresentative(t *testing.T) {
	// A document carrying a checksum list joins on its first element.
	entries := []iqr.RankedEntry{
		{Checksum: "g1", Confidence: 0.5},
	}
	docs := []solr.Document{
		doc("grouped", []any{"g1", "g2", "g3"}),
	}

	page, faults := Merge("sid-1", 1, entries, docs, checksumField)
	if len(faults) != 0 {
		t.Fatalf("expected no faults, got %v", faults)
	}
	if len(page.Docs) != 1 || page.Docs[0].Checksum != "g1" {
		t.Fatalf("expected representative g1, got %+v", page.Docs)
	}
}

func TestMerge_DocWithoutChecksumFieldFaults(t *testing.T) {
	entries := []iqr.RankedEntry{
		{Checksum: "h1", Confidence: 0.5},
	}
	docs := []solr.Document{
		doc("ok", "h1"),
		{"id": "broken"},
	}

	page, faults := Merge("sid-1", 1, entries, docs, checksumField)
	if len(page.Docs) != 1 {
		t.Fatalf("expected one doc, got %d", len(page.Docs))
	}
	if len(faults) != 1 || faults[0].Checksum != "" {
		t.Fatalf("expected empty-checksum fault, got %v", faults)
	}
}

func TestMerge_EmptyInputs(t *testing.T) {
	page, faults := Merge("sid-1", 0, nil, nil, checksumField)
	if len(faults) != 0 {
		t.Fatalf("expected no faults, got %v", faults)
	}
	if page.TotalResults != 0 || len(page.Docs) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestEmptyPage(t *testing.T) {
	page := EmptyPage()
	if page.TotalResults != 0 {
		t.Errorf("expected total 0, got %d", page.TotalResults)
	}
	if page.Docs == nil {
		t.Error("Docs must be non-nil so the page serializes as [] not null")
	}
}

func TestChecksums(t *testing.T) {
	entries := []iqr.RankedEntry{
		{Checksum: "x1", Confidence: 0.3},
		{Checksum: "x2", Confidence: 0.2},
	}
	got := Checksums(entries)
	want := []string{"x1", "x2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
