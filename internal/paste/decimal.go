// Package paste inspects text pasted into the grid before it is committed.
//
// Nothing in this package rewrites data on its own. Callers get a report and
// decide whether to raise an advisory; the pasted value is stored as typed.
package paste

import (
	"strings"

	"github.com/JonMunkholm/gridhost/internal/protocol"
)

// MaxSamples bounds the representative values collected per paste.
const MaxSamples = 6

// Report is the result of inspecting one pasted block.
type Report struct {
	Ambiguous bool               `json:"ambiguous"`
	Count     int                `json:"count"`
	Samples   []string           `json:"samples,omitempty"`
	Suspected protocol.Separator `json:"suspected,omitempty"`
	Stripped  bool               `json:"stripped"`
}

// AmbiguousDecimal reports whether s is a numeric string whose single
// separator could be either a thousands grouping or a decimal point, and if
// so, the alternate separator the user most likely meant.
//
// A string is ambiguous iff it contains exactly one separator character and
// either ends with it or has exactly three digits after it. A string with
// both separators is never ambiguous: the rightmost one is the decimal mark.
func AmbiguousDecimal(s string) (protocol.Separator, bool) {
	body := strings.TrimSpace(s)
	body = strings.TrimLeft(body, "+-")
	if !numericLike(body) {
		return "", false
	}

	if strings.Count(body, ".")+strings.Count(body, ",") != 1 {
		return "", false
	}

	idx := strings.IndexAny(body, ".,")
	if idx == 0 {
		return "", false
	}

	frac := body[idx+1:]
	if frac != "" && len(frac) != 3 {
		return "", false
	}

	if body[idx] == '.' {
		return protocol.SeparatorComma, true
	}
	return protocol.SeparatorDot, true
}

// numericLike accepts digits and separators with at least one digit.
func numericLike(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',':
		default:
			return false
		}
	}
	return digits > 0
}

// Inspect runs the detector over a list of cells. Samples keep paste order
// and stop at MaxSamples; Count keeps counting past the limit.
func Inspect(cells []string) Report {
	var rep Report
	votes := map[protocol.Separator]int{}
	var first protocol.Separator

	for _, c := range cells {
		if cleaned, stripped := Clean(c); stripped {
			rep.Stripped = true
			c = cleaned
		}
		sep, ok := AmbiguousDecimal(c)
		if !ok {
			continue
		}
		rep.Count++
		if first == "" {
			first = sep
		}
		votes[sep]++
		if len(rep.Samples) < MaxSamples {
			rep.Samples = append(rep.Samples, strings.TrimSpace(c))
		}
	}

	if rep.Count == 0 {
		return rep
	}
	rep.Ambiguous = true
	rep.Suspected = first
	if votes[protocol.SeparatorDot] > votes[protocol.SeparatorComma] {
		rep.Suspected = protocol.SeparatorDot
	} else if votes[protocol.SeparatorComma] > votes[protocol.SeparatorDot] {
		rep.Suspected = protocol.SeparatorComma
	}
	return rep
}

// InspectBlock splits a clipboard block (rows on newlines, cells on tabs)
// and inspects every cell.
func InspectBlock(text string) Report {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var cells []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		cells = append(cells, strings.Split(line, "\t")...)
	}
	return Inspect(cells)
}
