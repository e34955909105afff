package solr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestResolveByChecksum_QueryConstruction(t *testing.T) {
	var gotQuery string
	var gotWT string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/select" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("q")
		gotWT = r.URL.Query().Get("wt")
		_, _ = w.Write([]byte(`{"response": {"numFound": 0, "docs": []}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sha1sum_s_md", nil)
	if _, err := client.ResolveByChecksum(context.Background(), []string{"aaa", "bbb"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `sha1sum_s_md:("aaa" OR "bbb")`
	if gotQuery != want {
		t.Errorf("q = %q, want %q", gotQuery, want)
	}
	if gotWT != "json" {
		t.Errorf("wt = %q, want json", gotWT)
	}
}

func TestResolveByChecksum_ParsesDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"response": {
				"numFound": 2,
				"docs": [
					{"id": "img-1", "sha1sum_s_md": "aaa"},
					{"id": "img-2", "sha1sum_s_md": ["bbb", "ccc"]}
				]
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sha1sum_s_md", nil)
	docs, err := client.ResolveByChecksum(context.Background(), []string{"aaa", "bbb"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].RepresentativeChecksum("sha1sum_s_md") != "aaa" {
		t.Errorf("scalar checksum: got %q", docs[0].RepresentativeChecksum("sha1sum_s_md"))
	}
	if docs[1].RepresentativeChecksum("sha1sum_s_md") != "bbb" {
		t.Errorf("list checksum should join on first element, got %q",
			docs[1].RepresentativeChecksum("sha1sum_s_md"))
	}
}

func TestResolveByChecksum_EmptyInput(t *testing.T) {
	client := NewClient("http://unused.invalid", "sha1sum_s_md", nil)
	docs, err := client.ResolveByChecksum(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs != nil {
		t.Errorf("expected nil docs for empty input, got %v", docs)
	}
}

func TestResolveByChecksum_IndexDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "sha1sum_s_md", nil)
	if _, err := client.ResolveByChecksum(context.Background(), []string{"aaa"}); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable for 5xx, got %v", err)
	}

	server.Close()
	if _, err := client.ResolveByChecksum(context.Background(), []string{"aaa"}); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable for transport failure, got %v", err)
	}
}

func TestResolveByChecksum_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sha1sum_s_md", nil)
	if _, err := client.ResolveByChecksum(context.Background(), []string{"aaa"}); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable for malformed body, got %v", err)
	}
}

func TestFieldQuery_EscapesSpecialCharacters(t *testing.T) {
	client := NewClient("http://unused.invalid", "f", nil)
	got := client.fieldQuery([]string{`a"b`, `c\d`})
	want := `f:("a\"b" OR "c\\d")`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDocument_ChecksumValues(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want []string
	}{
		{"scalar", Document{"f": "aaa"}, []string{"aaa"}},
		{"list", Document{"f": []any{"aaa", "bbb"}}, []string{"aaa", "bbb"}},
		{"string slice", Document{"f": []string{"aaa"}}, []string{"aaa"}},
		{"absent", Document{}, nil},
		{"non-string", Document{"f": 42}, nil},
		{"empty list", Document{"f": []any{}}, nil},
		{"mixed list", Document{"f": []any{"aaa", 7}}, []string{"aaa"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.doc.ChecksumValues("f")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
