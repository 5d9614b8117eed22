// Package views renders the admin pages. Components are written against
// templ.ComponentFunc so the package builds without a generate step.
package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const pageStyle = `body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem;color:#1c1917}` +
	`table{border-collapse:collapse;width:100%}th,td{text-align:left;padding:.35rem .5rem;border-bottom:1px solid #e7e5e4}` +
	`td.num,th.num{text-align:right;font-variant-numeric:tabular-nums}.error{color:#b91c1c}` +
	`form.inline{display:inline}`

// page wraps body in the admin document shell.
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!doctype html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<meta name="robots" content="noindex"><title>`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(title)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</title><style>`+pageStyle+`</style></head><body>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// csrfField renders the hidden input echo's CSRF middleware reads.
func csrfField(token string) string {
	return `<input type="hidden" name="_csrf" value="` + templ.EscapeString(token) + `">`
}
