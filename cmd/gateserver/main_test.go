package main

import "testing"

func TestParseGrid(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"10x10", 10, 10, false},
		{"2x8", 2, 8, false},
		{"", 0, 0, true},
		{"10", 0, 0, true},
		{"0x4", 0, 0, true},
		{"-1x4", 0, 0, true},
		{"axb", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseGrid(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseGrid(%q) accepted invalid input", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseGrid(%q) failed: %v", tt.in, err)
			continue
		}
		if w != tt.w || h != tt.h {
			t.Errorf("parseGrid(%q) = %dx%d, want %dx%d", tt.in, w, h, tt.w, tt.h)
		}
	}
}
