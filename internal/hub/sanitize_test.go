package hub

import (
	"math"
	"strings"
	"testing"
)

func TestSanitizeChatMessage(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"plain text", "hello world", 500, "hello world"},
		{"trims whitespace", "   hello   ", 500, "hello"},
		{"strips script block", "<script>alert(1)</script>hello", 500, "hello"},
		{"strips script with attributes", `<script type="text/javascript">x()</script>ok`, 500, "ok"},
		{"strips script case-insensitively", "<SCRIPT>x</SCRIPT>safe", 500, "safe"},
		{"strips multiline script", "<script>\nalert(1)\n</script>after", 500, "after"},
		{"strips markup but keeps text", "hello <b>world</b>", 500, "hello world"},
		{"only markup", "<div><span></span></div>", 500, ""},
		{"only script", "<script>alert(1)</script>", 500, ""},
		{"empty", "", 500, ""},
		{"whitespace only", "   \t\n  ", 500, ""},
		{"caps length in runes", strings.Repeat("가", 600), 500, strings.Repeat("가", 500)},
		{"cap applies before strip", "<b>" + strings.Repeat("a", 500), 500, strings.Repeat("a", 497)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeChatMessage(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("sanitizeChatMessage(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateDrawing(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	tests := []struct {
		name string
		p    DrawingPayload
		want bool
	}{
		{"start with coordinates", DrawingPayload{Kind: DrawStart, X: fp(1), Y: fp(2)}, true},
		{"draw with coordinates", DrawingPayload{Kind: DrawMove, X: fp(0), Y: fp(0)}, true},
		{"start missing x", DrawingPayload{Kind: DrawStart, Y: fp(2)}, false},
		{"start missing y", DrawingPayload{Kind: DrawStart, X: fp(1)}, false},
		{"draw with NaN", DrawingPayload{Kind: DrawMove, X: &nan, Y: fp(2)}, false},
		{"draw with Inf", DrawingPayload{Kind: DrawMove, X: fp(1), Y: &inf}, false},
		{"end without coordinates", DrawingPayload{Kind: DrawEnd}, true},
		{"end with coordinates", DrawingPayload{Kind: DrawEnd, X: fp(1), Y: fp(2)}, true},
		{"unknown kind", DrawingPayload{Kind: "wipe", X: fp(1), Y: fp(2)}, false},
		{"missing kind", DrawingPayload{X: fp(1), Y: fp(2)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validateDrawing(tt.p); got != tt.want {
				t.Errorf("validateDrawing(%+v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}
