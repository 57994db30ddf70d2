package strings

import "testing"

func TestCount(t *testing.T) {
	tests := []struct {
		count int64
		want  string
	}{
		{0, "0 files"},
		{1, "1 file"},
		{2, "2 files"},
	}
	for _, tt := range tests {
		if got := Count(tt.count, "file"); got != tt.want {
			t.Errorf("Count(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}
