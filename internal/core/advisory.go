package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/gridhost/internal/paste"
	"github.com/JonMunkholm/gridhost/internal/protocol"
)

// pasteSide records which half of a paste has been seen: the surface's
// decimal-format-detected or the host's paste data-changed.
type pasteSide int

const (
	pasteNone pasteSide = iota
	pasteFromHost
	pasteFromSurface
)

// beginPaste starts a new paste, or joins the open one when its other half
// arrived just before. Advisories are raised at most once per kind per paste.
func (r *Reconciler) beginPaste(side pasteSide) {
	if r.openPaste != pasteNone && r.openPaste != side {
		r.openPaste = pasteNone
		return
	}
	r.pasteSeq++
	r.openPaste = side
}

// endPaste closes the open paste; any other surface message ends it.
func (r *Reconciler) endPaste() { r.openPaste = pasteNone }

// inspectPaste raises the host-side advisories for one paste.
func (r *Reconciler) inspectPaste(cells []string) {
	if len(cells) == 0 {
		return
	}
	rep := paste.Inspect(cells)
	if rep.Ambiguous {
		r.adviseDecimal(rep.Samples, rep.Count, rep.Suspected)
	}
	if rep.Stripped {
		r.advise(Advisory{
			Kind:    AdvisoryInvisibleChar,
			Message: "Stripped invisible characters from pasted values",
		})
	}
}

// adviseDecimal raises at most one decimal-format advisory per paste, no
// matter whether the host or the surface noticed first.
func (r *Reconciler) adviseDecimal(samples []string, count int, suspected protocol.Separator) {
	if len(samples) > paste.MaxSamples {
		samples = samples[:paste.MaxSamples]
	}
	alt := "comma"
	if suspected == protocol.SeparatorDot {
		alt = "dot"
	}
	r.advise(Advisory{
		Kind: AdvisoryDecimalFormat,
		Message: fmt.Sprintf("%d pasted value(s) such as %s may use %s as the decimal separator",
			count, strings.Join(samples, ", "), alt),
		Samples:   samples,
		Suspected: suspected,
	})
}

func (r *Reconciler) advise(a Advisory) {
	if seq, ok := r.advisedOnPaste[a.Kind]; ok && seq == r.pasteSeq {
		return
	}
	r.advisedOnPaste[a.Kind] = r.pasteSeq

	now := r.opts.Now()
	r.advisorySeq++
	a.ID = r.advisorySeq
	a.CreatedAt = now
	a.ExpiresAt = now.Add(r.opts.AdvisoryTTL)
	r.advisories = append(r.advisories, a)
	r.fresh = append(r.fresh, a)

	r.logger.Info("advisory raised", "kind", a.Kind, "message", a.Message)
}

// Advisories returns the advisories that have not expired, oldest first.
func (r *Reconciler) Advisories() []Advisory {
	now := r.opts.Now()
	kept := r.advisories[:0]
	for _, a := range r.advisories {
		if now.Before(a.ExpiresAt) {
			kept = append(kept, a)
		}
	}
	r.advisories = kept
	return append([]Advisory(nil), kept...)
}

// TakeNewAdvisories returns and clears advisories raised since the last call.
func (r *Reconciler) TakeNewAdvisories() []Advisory {
	out := r.fresh
	r.fresh = nil
	return out
}

// DismissAdvisories drops every advisory.
func (r *Reconciler) DismissAdvisories() {
	r.advisories = nil
	r.fresh = nil
}
