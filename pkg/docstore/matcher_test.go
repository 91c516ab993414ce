package docstore

import "testing"

func Test_DefaultMatcher_Requires_All_Query_Fields_Equal(t *testing.T) {
	t.Parallel()

	doc := Document{"name": "test", "status": "active"}

	tests := []struct {
		name  string
		query Document
		want  bool
	}{
		{"empty query matches everything", Document{}, true},
		{"single matching field", Document{"name": "test"}, true},
		{"single non-matching field", Document{"name": "other"}, false},
		{"conjunctive match", Document{"name": "test", "status": "active"}, true},
		{"conjunctive mismatch", Document{"name": "test", "status": "inactive"}, false},
		{"missing field in doc", Document{"missing": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DefaultMatcher(tt.query, doc); got != tt.want {
				t.Fatalf("DefaultMatcher(%v, %v) = %v, want %v", tt.query, doc, got, tt.want)
			}
		})
	}
}

func Test_DefaultMatcher_Compares_Byte_Slices_By_Value(t *testing.T) {
	t.Parallel()

	doc := Document{"blob": []byte{1, 2, 3}}

	if !DefaultMatcher(Document{"blob": []byte{1, 2, 3}}, doc) {
		t.Fatal("equal byte slices should match")
	}

	if DefaultMatcher(Document{"blob": []byte{1, 2, 4}}, doc) {
		t.Fatal("different byte slices should not match")
	}
}
