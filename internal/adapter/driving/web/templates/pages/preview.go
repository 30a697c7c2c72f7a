// Package pages holds the page-level templ components.
package pages

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/reviewnudge/internal/adapter/driving/web/viewmodel"
)

// Preview renders the dry-run preview: one section per team with its status,
// counts, project failures and the message that would be posted.
func Preview(page viewmodel.PreviewPageViewModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &htmlWriter{w: w}

		out.raw(`<header><h1>`)
		out.text(page.Title)
		out.raw(`</h1><p>Logical date: `)
		out.text(page.LogicalDate)
		if page.Suppressed {
			out.raw(` &middot; non-working day, nothing would be sent`)
		}
		out.raw(`</p></header>`)
		if out.err != nil {
			return out.err
		}

		if len(page.Teams) == 0 {
			out.raw(`<p>No teams configured.</p>`)
			return out.err
		}

		for _, team := range page.Teams {
			if err := TeamSection(team).Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// TeamSection renders a single team's preview card.
func TeamSection(team viewmodel.TeamPreviewViewModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &htmlWriter{w: w}

		out.raw(`<section class="team"><h2>`)
		out.text(team.Name)
		out.raw(` <span class="`)
		out.text("badge " + team.StatusClass)
		out.raw(`">`)
		out.text(team.Status)
		out.raw(`</span></h2><p class="counts">`)
		out.raw(strconv.Itoa(team.StaleCount) + ` stale &middot; ` +
			strconv.Itoa(team.Filtered) + ` filtered &middot; ` +
			strconv.Itoa(team.Dropped) + ` dropped</p>`)

		if team.Error != "" {
			out.raw(`<p class="failures">`)
			out.text(team.Error)
			out.raw(`</p>`)
		}

		if len(team.Failures) > 0 {
			out.raw(`<ul class="failures">`)
			for _, f := range team.Failures {
				out.raw(`<li><strong>`)
				out.text(f.Project)
				out.raw(`</strong> (`)
				out.text(f.Kind)
				out.raw(`): `)
				out.text(f.Error)
				out.raw(`</li>`)
			}
			out.raw(`</ul>`)
		}
		if out.err != nil {
			return out.err
		}

		if team.Message != "" {
			out.raw(`<div class="message">`)
			if out.err != nil {
				return out.err
			}
			// Message is already sanitized HTML.
			if err := templ.Raw(team.Message).Render(ctx, w); err != nil {
				return err
			}
			out.raw(`</div>`)
		}

		out.raw(`</section>`)
		return out.err
	})
}

// htmlWriter writes markup until the first error, which it keeps.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}
