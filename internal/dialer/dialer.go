// Package dialer implements the keypad input engine: it turns discrete key
// events into a normalized dial string and derives the display formatting and
// country flag from it.
package dialer

import (
	"strings"
)

// MaxInputLength is the maximum number of symbols a dial string may hold.
const MaxInputLength = 18

// allowedSymbol reports whether r may appear in a dial string.
func allowedSymbol(r rune) bool {
	return (r >= '0' && r <= '9') || r == '+' || r == '*' || r == '#'
}

// State holds the raw keypad input and the values derived from it. The
// derived fields are pure functions of Normalized and are recomputed on every
// mutation; there is no way to set them independently.
type State struct {
	Raw         string
	Normalized  string
	Display     string
	CountryCode string
	FlagEmoji   string
}

// NewState returns an empty dial state.
func NewState() *State {
	return &State{}
}

// AppendSymbol appends a single keypad symbol (digit, '*', '#' or '+') to the
// input. Symbols that would push the input past MaxInputLength are silently
// ignored, as are symbols outside the allowed set.
func (s *State) AppendSymbol(sym string) {
	for _, r := range sym {
		if !allowedSymbol(r) {
			return
		}
	}
	if len(s.Raw)+len(sym) > MaxInputLength {
		return
	}
	s.Raw += sym
	s.recompute()
}

// DeleteLast removes the last symbol of the input. No-op when empty.
func (s *State) DeleteLast() {
	if s.Raw == "" {
		return
	}
	s.Raw = s.Raw[:len(s.Raw)-1]
	s.recompute()
}

// Clear resets the input to empty.
func (s *State) Clear() {
	s.Raw = ""
	s.recompute()
}

// SetFromPaste replaces the input wholesale with the pasted text, keeping only
// allowed symbols and truncating to MaxInputLength.
func (s *State) SetFromPaste(text string) {
	var b strings.Builder
	for _, r := range text {
		if allowedSymbol(r) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if len(cleaned) > MaxInputLength {
		cleaned = cleaned[:MaxInputLength]
	}
	s.Raw = cleaned
	s.recompute()
}

// CallEnabled reports whether there is anything to dial.
func (s *State) CallEnabled() bool {
	return s.Normalized != ""
}

// DeleteEnabled reports whether there is anything to delete.
func (s *State) DeleteEnabled() bool {
	return s.Normalized != ""
}

func (s *State) recompute() {
	// Normalization may rewrite the raw input (00 prefix), mirroring how the
	// keypad echoes the canonical form back to the user.
	s.Raw = Normalize(s.Raw)
	s.Normalized = s.Raw
	s.Display = Format(s.Normalized)
	s.CountryCode, _ = SplitInternational(s.Normalized)
	s.FlagEmoji = Flag(s.Normalized)
}

// Normalize converts raw keypad input into the canonical dial string: a
// leading "00" becomes "+" and all spaces are stripped. Idempotent.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}
	value := raw
	if strings.HasPrefix(value, "00") {
		value = "+" + strings.TrimPrefix(value, "00")
	}
	return strings.ReplaceAll(value, " ", "")
}

// Format renders a normalized dial string for display. International numbers
// are split as "+CC rest" when the calling code is known, and returned
// unchanged otherwise. Local numbers are grouped in digit pairs separated by
// single spaces; '*' and '#' are appended without spacing logic.
func Format(normalized string) string {
	if normalized == "" {
		return ""
	}
	if strings.HasPrefix(normalized, "+") {
		code, rest := SplitInternational(normalized)
		if code != "" {
			return "+" + code + " " + rest
		}
		return normalized
	}

	var b strings.Builder
	count := 0
	for _, r := range normalized {
		switch {
		case r >= '0' && r <= '9':
			if count > 0 && count%2 == 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			count++
		case r == '*' || r == '#':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitInternational splits a "+"-prefixed dial string into its country
// calling code and the remaining digits, using longest-prefix matching
// (3, 2, then 1 digits) against the calling-code table. When no code matches,
// the returned code is empty and rest holds all digits.
func SplitInternational(normalized string) (code, rest string) {
	if !strings.HasPrefix(normalized, "+") {
		return "", ""
	}
	var digits strings.Builder
	for _, r := range strings.TrimPrefix(normalized, "+") {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	for length := 3; length >= 1; length-- {
		if len(d) < length {
			continue
		}
		candidate := d[:length]
		if _, ok := callingCodeToISO[candidate]; ok {
			return candidate, d[length:]
		}
	}
	return "", d
}

// Flag returns the regional-indicator flag emoji for an international dial
// string, or "" when the number is not international or the calling code is
// not in the table.
func Flag(normalized string) string {
	if !strings.HasPrefix(normalized, "+") {
		return ""
	}
	code, _ := SplitInternational(normalized)
	if code == "" {
		return ""
	}
	iso, ok := callingCodeToISO[code]
	if !ok {
		return ""
	}
	return isoToFlagEmoji(iso)
}

// isoToFlagEmoji composes the two-codepoint regional-indicator flag for an
// ISO 3166-1 alpha-2 country code.
func isoToFlagEmoji(iso string) string {
	if len(iso) != 2 {
		return ""
	}
	upper := strings.ToUpper(iso)
	first := rune(0x1F1E6 + int(upper[0]) - 'A')
	second := rune(0x1F1E6 + int(upper[1]) - 'A')
	return string(first) + string(second)
}
