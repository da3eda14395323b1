package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Notice is a short transactional message: a heading, a few paragraphs and
// an optional call to action.
type Notice struct {
	Product      string
	Heading      string
	Paragraphs   []string
	ActionLabel  string
	ActionURL    string
	SupportEmail string
}

// NoticeEmail renders n as a self-contained HTML document. All text is escaped.
func NoticeEmail(n Notice) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return layout(n.Product, noticeBody(n)).Render(ctx, w)
	})
}

func layout(product string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>`+
			templ.EscapeString(product)+`</title></head>`+
			`<body style="font-family:sans-serif;color:#1f2937;max-width:560px;margin:0 auto;padding:24px">`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func noticeBody(n Notice) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<h1 style="font-size:20px">`+templ.EscapeString(n.Heading)+`</h1>`); err != nil {
			return err
		}
		for _, p := range n.Paragraphs {
			if _, err := io.WriteString(w, `<p>`+templ.EscapeString(p)+`</p>`); err != nil {
				return err
			}
		}
		if n.ActionURL != "" && n.ActionLabel != "" {
			href := string(templ.URL(n.ActionURL))
			if _, err := io.WriteString(w, `<p><a href="`+templ.EscapeString(href)+`">`+
				templ.EscapeString(n.ActionLabel)+`</a></p>`); err != nil {
				return err
			}
		}
		if n.SupportEmail != "" {
			if _, err := io.WriteString(w, `<p style="font-size:12px;color:#6b7280">Questions? Reply to this email or write to `+
				templ.EscapeString(n.SupportEmail)+`.</p>`); err != nil {
				return err
			}
		}
		return nil
	})
}
