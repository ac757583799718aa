package batch

import (
	"errors"
	"testing"
)

func TestBounds(t *testing.T) {
	tests := []struct {
		n, limit int
		want     [][2]int
	}{
		{0, 400, nil},
		{1000, 400, [][2]int{{0, 400}, {400, 800}, {800, 1000}}},
		{400, 400, [][2]int{{0, 400}}},
		{401, 400, [][2]int{{0, 400}, {400, 401}}},
		{5, 0, [][2]int{{0, 5}}},
	}
	for _, tc := range tests {
		got := Bounds(tc.n, tc.limit)
		if len(got) != len(tc.want) {
			t.Fatalf("Bounds(%d, %d): got %v, want %v", tc.n, tc.limit, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Bounds(%d, %d)[%d]: got %v, want %v", tc.n, tc.limit, i, got[i], tc.want[i])
			}
		}
	}
}

func TestReport(t *testing.T) {
	boom := errors.New("boom")
	r := Report{Chunks: []Chunk{NewOK(0, 400), NewOK(1, 400), NewError(2, 200, boom)}}

	if r.Committed() != 800 {
		t.Errorf("Committed: got %d, want 800", r.Committed())
	}
	if r.CommittedChunks() != 2 {
		t.Errorf("CommittedChunks: got %d, want 2", r.CommittedChunks())
	}
	if !errors.Is(r.Err(), boom) {
		t.Errorf("Err: got %v", r.Err())
	}
	if r.Chunks[2].Status() != StatusError || r.Chunks[2].Index() != 2 || r.Chunks[2].Size() != 200 {
		t.Errorf("unexpected chunk: %+v", r.Chunks[2])
	}

	ok := Report{Chunks: []Chunk{NewOK(0, 3)}}
	if ok.Err() != nil {
		t.Errorf("expected nil error, got %v", ok.Err())
	}
}
