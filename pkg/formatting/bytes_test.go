package formatting_test

import (
	"testing"

	"github.com/JaimeStill/clearance/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"default upload limit", "50MB", 50 << 20, false},
		{"bare number", "4096", 4096, false},
		{"explicit bytes", "512B", 512, false},
		{"kilobytes", "1KB", 1 << 10, false},
		{"gigabytes", "2GB", 2 << 30, false},
		{"lowercase", "25mb", 25 << 20, false},
		{"space before unit", "100 MB", 100 << 20, false},
		{"surrounding whitespace", " 10MB ", 10 << 20, false},
		{"fractional", "1.5KB", 1536, false},
		{"zero", "0", 0, false},
		{"empty", "", 0, true},
		{"unknown unit", "50MiB", 0, true},
		{"unit only", "MB", 0, true},
		{"negative", "-5MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name      string
		n         int64
		precision int
		want      string
	}{
		{"zero", 0, 1, "0 B"},
		{"small file", 900, 0, "900 B"},
		{"handler limit in tests", 1024, 1, "1.0 KB"},
		{"default upload limit", 50 << 20, 0, "50 MB"},
		{"scanned bill of lading", 3 << 19, 1, "1.5 MB"},
		{"negative precision", 1 << 30, -2, "1 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
				t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.precision, got, tt.want)
			}
		})
	}
}

func TestFormatBytesParses(t *testing.T) {
	for _, n := range []int64{1 << 10, 50 << 20, 1 << 30, 1 << 40} {
		formatted := formatting.FormatBytes(n, 0)
		parsed, err := formatting.ParseBytes(formatted)
		if err != nil {
			t.Fatalf("ParseBytes(%q): %v", formatted, err)
		}
		if parsed != n {
			t.Errorf("FormatBytes(%d) = %q parsed back as %d", n, formatted, parsed)
		}
	}
}
