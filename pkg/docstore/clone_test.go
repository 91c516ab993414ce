package docstore

import (
	"testing"
	"time"
)

func Test_CloneDocument_Is_Independent_Of_Source(t *testing.T) {
	t.Parallel()

	src := Document{
		"name":   "test",
		"tags":   []any{"a", "b"},
		"binary": []byte{1, 2, 3},
		"nested": Document{"inner": "value"},
		"when":   time.Unix(0, 0),
	}

	clone := cloneDocument(src)

	clone["name"] = "mutated"
	clone["tags"].([]any)[0] = "mutated"
	clone["binary"].([]byte)[0] = 0xff
	clone["nested"].(Document)["inner"] = "mutated"

	if src["name"] != "test" {
		t.Fatalf("src[name] = %v, want unaffected by clone mutation", src["name"])
	}

	if src["tags"].([]any)[0] != "a" {
		t.Fatalf("src[tags][0] = %v, want unaffected by clone mutation", src["tags"].([]any)[0])
	}

	if src["binary"].([]byte)[0] != 1 {
		t.Fatalf("src[binary][0] = %v, want unaffected by clone mutation", src["binary"].([]byte)[0])
	}

	if src["nested"].(Document)["inner"] != "value" {
		t.Fatalf("src[nested][inner] = %v, want unaffected by clone mutation", src["nested"].(Document)["inner"])
	}
}

func Test_CloneDocument_Nil_Returns_Nil(t *testing.T) {
	t.Parallel()

	if cloneDocument(nil) != nil {
		t.Fatal("cloneDocument(nil) should return nil")
	}
}
