package views

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/viewcounter/counter"
)

// AdminLogin renders the password form. showError adds the failed-attempt
// notice.
func AdminLogin(showError bool, csrfToken string) templ.Component {
	return page("Admin login", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>View counter admin</h1>`)
		if showError {
			b.WriteString(`<p class="error">Invalid password.</p>`)
		}
		b.WriteString(`<form method="post" action="/admin/login/">`)
		b.WriteString(csrfField(csrfToken))
		b.WriteString(`<label for="password">Password</label> `)
		b.WriteString(`<input id="password" name="password" type="password" autocomplete="current-password" required autofocus> `)
		b.WriteString(`<button type="submit">Sign in</button></form>`)
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

// AdminStats renders every counter, most viewed first, with the overall
// total.
func AdminStats(total int64, pages []counter.PageViews, csrfToken string) templ.Component {
	return page("Page views", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Page views</h1>`)
		fmt.Fprintf(&b, `<p>%s views across %s pages. <a href="/admin/stats/?refresh=1">Refresh</a> `,
			FormatCount(total), FormatCount(int64(len(pages))))
		b.WriteString(`<form class="inline" method="post" action="/admin/logout/">`)
		b.WriteString(csrfField(csrfToken))
		b.WriteString(`<button type="submit">Sign out</button></form></p>`)

		if len(pages) == 0 {
			b.WriteString(`<p>No views recorded yet.</p>`)
		} else {
			b.WriteString(`<table><thead><tr><th>Page</th><th class="num">Views</th></tr></thead><tbody>`)
			for _, p := range pages {
				b.WriteString(`<tr><td>`)
				b.WriteString(templ.EscapeString(p.Slug))
				b.WriteString(`</td><td class="num">`)
				b.WriteString(FormatCount(p.Views))
				b.WriteString(`</td></tr>`)
			}
			b.WriteString(`</tbody></table>`)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

// FormatCount groups digits in thousands: 1234567 -> "1,234,567".
func FormatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
