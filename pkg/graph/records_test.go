package graph

import (
	"errors"
	"testing"
)

func TestDecodeRecords_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantRecs  int
		wantNodes int
		wantRels  int
	}{
		{
			name:      "list of records",
			input:     `[{"nodes":[{"id":"A"}]},{"nodes":[{"id":"B"}],"relationships":[{"source":"A","target":"B"}]}]`,
			wantRecs:  2,
			wantNodes: 2,
			wantRels:  1,
		},
		{
			name:      "single record",
			input:     `{"nodes":[{"id":"A"},{"name":"B"}]}`,
			wantRecs:  1,
			wantNodes: 2,
		},
		{
			name:      "records envelope",
			input:     `{"records":[{"relationships":[{"from":"A","to":"B"}]}]}`,
			wantRecs:  1,
			wantRels:  1,
		},
		{
			name:     "empty record",
			input:    `{}`,
			wantRecs: 1,
		},
		{
			name:      "trailing comma repaired",
			input:     `[{"nodes":[{"id":"A"},]}]`,
			wantRecs:  1,
			wantNodes: 1,
		},
		{
			name:      "unquoted keys repaired",
			input:     `{nodes: [{id: 'A'}], relationships: [{source: 'A', target: 'A'}]}`,
			wantRecs:  1,
			wantNodes: 1,
			wantRels:  1,
		},
		{
			name:      "double encoded",
			input:     `"{\"nodes\":[{\"id\":\"A\"}]}"`,
			wantRecs:  1,
			wantNodes: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records, err := DecodeRecords([]byte(tc.input))
			if err != nil {
				t.Fatalf("DecodeRecords() error = %v", err)
			}
			if len(records) != tc.wantRecs {
				t.Fatalf("expected %d records, got %d", tc.wantRecs, len(records))
			}
			nodes, rels := 0, 0
			for _, r := range records {
				nodes += len(r.Nodes)
				rels += len(r.Relationships)
			}
			if nodes != tc.wantNodes || rels != tc.wantRels {
				t.Fatalf("expected %d nodes and %d relationships, got %d and %d", tc.wantNodes, tc.wantRels, nodes, rels)
			}
		})
	}
}

func TestDecodeRecords_Empty(t *testing.T) {
	_, err := DecodeRecords([]byte("   "))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}
