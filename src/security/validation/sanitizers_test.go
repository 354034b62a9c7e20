package validation

import "testing"

func TestSanitizeForFormulaInjection(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTC", "BTC"},
		{"=CMD('/c calc')", "'=CMD('/c calc')"},
		{"+1234", "'+1234"},
		{"-DMARKET", "'-DMARKET"},
		{"@token", "'@token"},
		{" =CMD", "' =CMD"},
		{"", ""},
		{"   ", "   "},
	}
	for _, tt := range tests {
		if got := SanitizeForFormulaInjection(tt.in); got != tt.want {
			t.Errorf("SanitizeForFormulaInjection(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripUnprintable(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain remark", "plain remark"},
		{"keep\ttabs\nand\rnewlines", "keep\ttabs\nand\rnewlines"},
		{"drop\x00nulls\x07and bells", "dropnullsand bells"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripUnprintable(tt.in); got != tt.want {
			t.Errorf("StripUnprintable(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
