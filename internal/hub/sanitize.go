package hub

import (
	"math"
	"regexp"
	"strings"
)

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	markupTagRe   = regexp.MustCompile(`<[^>]*>`)
)

// sanitizeChatMessage trims, caps at maxLen runes, then strips script blocks
// and any remaining markup. Returns "" when nothing survives.
func sanitizeChatMessage(message string, maxLen int) string {
	message = strings.TrimSpace(message)

	if runes := []rune(message); len(runes) > maxLen {
		message = string(runes[:maxLen])
	}

	message = scriptBlockRe.ReplaceAllString(message, "")
	message = markupTagRe.ReplaceAllString(message, "")

	return strings.TrimSpace(message)
}

// validateDrawing checks the stroke shape: a kind is required, and start/draw
// events must carry finite numeric coordinates. End events may omit them.
func validateDrawing(p DrawingPayload) bool {
	switch p.Kind {
	case DrawStart, DrawMove:
		return isFinite(p.X) && isFinite(p.Y)
	case DrawEnd:
		return true
	default:
		return false
	}
}

func isFinite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
