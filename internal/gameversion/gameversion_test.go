package gameversion

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []int
		wantErr bool
	}{
		{name: "three parts", in: "2.1.9", want: []int{2, 1, 9}},
		{name: "four parts", in: "1.0.0.3", want: []int{1, 0, 0, 3}},
		{name: "surrounding whitespace", in: " 2.1 ", want: []int{2, 1}},
		{name: "single component", in: "2", wantErr: true},
		{name: "too many components", in: "1.2.3.4.5", wantErr: true},
		{name: "non numeric", in: "2.1.a", wantErr: true},
		{name: "negative", in: "2.-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Parse(%q)=%v want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2.1.9", "2.1.9", 0},
		{"2.1.9", "2.1.10", -1},
		{"2.2", "2.1.10", 1},
		{"2.1", "2.1.0", -1},
		{"1.0.0.1", "1.0.0", 1},
	}

	for _, tt := range tests {
		got, err := Compare(tt.a, tt.b)
		if err != nil {
			t.Fatalf("Compare(%q, %q) returned error: %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Fatalf("Compare(%q, %q)=%d want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		detected  string
		supported string
		want      Result
		wantErr   bool
	}{
		{name: "no supported version", detected: "2.1.9", supported: "", want: Unspecified},
		{name: "identical strings", detected: "2.1.9", supported: "2.1.9", want: OK},
		{name: "identical unparseable strings", detected: "CORRUPTED VERSION.TXT", supported: "CORRUPTED VERSION.TXT", want: OK},
		{name: "game older", detected: "2.1.3", supported: "2.1.9", want: Older},
		{name: "game newer", detected: "2.2.0", supported: "2.1.9", want: Newer},
		{name: "unparseable detected", detected: "garbage", supported: "2.1.9", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Check(tt.detected, tt.supported)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Check(%q, %q) expected error", tt.detected, tt.supported)
				}
				return
			}
			if err != nil {
				t.Fatalf("Check returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Check(%q, %q)=%v want %v", tt.detected, tt.supported, got, tt.want)
			}
		})
	}
}

func TestResultMismatch(t *testing.T) {
	for r, want := range map[Result]bool{OK: false, Unspecified: false, Older: true, Newer: true} {
		if got := r.Mismatch(); got != want {
			t.Fatalf("%v.Mismatch()=%t want %t", r, got, want)
		}
	}
}
