// Package templates holds the HTMX partials returned by the web layer.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// ErrorAlert renders an error banner with the operator message, the
// suggested action and the reference code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert" data-code="%s"><p class="alert-message">%s</p>`,
			templ.EscapeString(code), templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<p class="alert-code">Code: %s</p></div>`, templ.EscapeString(code))
		return err
	})
}

// Notice renders a short success banner.
func Notice(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert alert-success" role="status">%s</div>`, templ.EscapeString(message))
		return err
	})
}

// EvidencePanel renders the supporting payload for one repaired row.
func EvidencePanel(row int, sourceTable string, sourceRow int, conflictSummary, citation string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<section class="evidence" data-row="%d"><h3>Row %d</h3>`+
				`<p class="evidence-source">%s, row %d</p>`+
				`<p class="evidence-conflict">%s</p>`+
				`<pre class="evidence-citation">%s</pre></section>`,
			row, row+1,
			templ.EscapeString(sourceTable), sourceRow,
			templ.EscapeString(conflictSummary),
			templ.EscapeString(citation))
		return err
	})
}
