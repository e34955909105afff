package solr

import "encoding/json"

// Document is a single record returned by the index. The field schema is
// index-defined and passed through untouched; only the checksum field is
// interpreted by this service. The checksum field may be a scalar or a
// list of values when the index groups duplicate/near-duplicate content
// under one document.
type Document map[string]any

// ChecksumValues returns the document's checksum values for the given
// field, normalizing the scalar and list encodings. Returns nil if the
// field is absent or carries no string values.
func (d Document) ChecksumValues(field string) []string {
	switch v := d[field].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		if len(v) == 0 {
			return nil
		}
		return v
	default:
		return nil
	}
}

// RepresentativeChecksum returns the checksum used to join this document
// against ranking output: the scalar value, or the first element of a
// duplicate-group list. Empty string if the field is unusable.
func (d Document) RepresentativeChecksum(field string) string {
	values := d.ChecksumValues(field)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// selectResponse mirrors the index's select envelope.
type selectResponse struct {
	Response struct {
		NumFound int        `json:"numFound"`
		Docs     []Document `json:"docs"`
	} `json:"response"`
}

func parseSelectResponse(data []byte) (*selectResponse, error) {
	var sr selectResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, err
	}
	return &sr, nil
}
