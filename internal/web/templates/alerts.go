// Package templates holds the HTML partials returned to HTMX clients.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// ErrorAlert renders a dismissible error banner with an optional suggested
// action and the error code for support.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert" data-code="`)
		b.WriteString(templ.EscapeString(code))
		b.WriteString(`"><p class="alert-message">`)
		b.WriteString(templ.EscapeString(message))
		b.WriteString(`</p>`)
		if action != "" {
			b.WriteString(`<p class="alert-action">`)
			b.WriteString(templ.EscapeString(action))
			b.WriteString(`</p>`)
		}
		fmt.Fprintf(&b, `<small class="alert-code">%s</small></div>`, templ.EscapeString(code))
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// AdvisoryItem is one advisory as shown to the user.
type AdvisoryItem struct {
	ID      int64
	Kind    string
	Message string
	Samples []string
}

// AdvisoryList renders the advisory toasts of a session. An empty list
// renders an empty container so HTMX swaps clear stale toasts.
func AdvisoryList(items []AdvisoryItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div id="advisories" class="advisories">`)
		for _, it := range items {
			fmt.Fprintf(&b, `<div class="advisory advisory-%s" data-id="%d"><span>%s</span>`,
				templ.EscapeString(it.Kind), it.ID, templ.EscapeString(it.Message))
			if len(it.Samples) > 0 {
				b.WriteString(`<ul class="advisory-samples">`)
				for _, s := range it.Samples {
					b.WriteString(`<li><code>`)
					b.WriteString(templ.EscapeString(s))
					b.WriteString(`</code></li>`)
				}
				b.WriteString(`</ul>`)
			}
			b.WriteString(`</div>`)
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
