package docstore

import (
	"testing"
	"time"
)

func Test_SelfWriteTracker_Suppresses_Within_Threshold(t *testing.T) {
	t.Parallel()

	tr := newSelfWriteTracker(50 * time.Millisecond)

	start := time.Now()
	tr.record("/data/templates/test/config.json")

	if !tr.isSelfWrite("/data/templates/test/config.json", start.Add(10*time.Millisecond)) {
		t.Fatal("expected write within threshold to be suppressed")
	}

	if tr.isSelfWrite("/data/templates/test/config.json", start.Add(100*time.Millisecond)) {
		t.Fatal("expected write past threshold not to be suppressed")
	}
}

func Test_SelfWriteTracker_Unknown_Path_Is_Not_Self_Write(t *testing.T) {
	t.Parallel()

	tr := newSelfWriteTracker(time.Second)

	if tr.isSelfWrite("/never/written", time.Now()) {
		t.Fatal("unknown path should never be treated as a self-write")
	}
}
