package extraction

import "testing"

func TestCleaner_Clean(t *testing.T) {
	cleaner, err := NewCleaner(nil)
	if err != nil {
		t.Fatalf("NewCleaner() error = %v", err)
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips lab header",
			in:   "CLINICTECH LABS - COMPREHENSIVE REPORT\n# Lipid Panel\nLDL: 155",
			want: "# Lipid Panel\nLDL: 155",
		},
		{
			name: "case insensitive",
			in:   "clinictech labs - comprehensive report\nHDL: 40",
			want: "HDL: 40",
		},
		{
			name: "address with OCR typo",
			in:   "123 innovation Dove\nGlucose: 99",
			want: "Glucose: 99",
		},
		{
			name: "page markers",
			in:   "--- PAGE 2 ---\nSodium: 140\nPage 2",
			want: "Sodium: 140",
		},
		{
			name: "nothing to clean",
			in:   "  Hemoglobin: 13.5 g/dL  ",
			want: "Hemoglobin: 13.5 g/dL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleaner.Clean(tt.in); got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewCleaner_CustomPatterns(t *testing.T) {
	cleaner, err := NewCleaner([]string{`ACME LAB`})
	if err != nil {
		t.Fatalf("NewCleaner() error = %v", err)
	}
	if got := cleaner.Clean("acme lab\nPage 3"); got != "Page 3" {
		t.Errorf("custom patterns should replace defaults, got %q", got)
	}

	if _, err := NewCleaner([]string{"("}); err == nil {
		t.Error("NewCleaner() with invalid regexp should fail")
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		filename string
		want     int
		wantNil  bool
	}{
		{filename: "lab_report_2022.pdf", want: 2022},
		{filename: "2019-checkup.pdf", want: 2019},
		{filename: "report_2021_2023.pdf", want: 2021},
		{filename: "report.pdf", wantNil: true},
		{filename: "scan_1234.pdf", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := ParseYear(tt.filename)
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseYear() = %d, want nil", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("ParseYear() = %v, want %d", got, tt.want)
			}
		})
	}
}
