package web

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	vm "github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driving/web/viewmodel"
)

// Layout wraps body in the HTML document shell. A positive refresh sets a
// meta refresh so wall-mounted displays pick up new credentials.
func Layout(title string, refresh int, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := &pageWriter{w: w}
		pw.raw(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		pw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		if refresh > 0 {
			pw.raw(`<meta http-equiv="refresh" content="` + strconv.Itoa(refresh) + `">`)
		}
		pw.raw(`<title>`)
		pw.text(title)
		pw.raw(`</title><link rel="stylesheet" href="/static/style.css"></head><body>`)
		if pw.err != nil {
			return pw.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		pw.raw(`</body></html>`)
		return pw.err
	})
}

// StatusPage renders the credential card.
func StatusPage(view vm.StatusViewModel) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		pw := &pageWriter{w: w}
		pw.raw(`<main class="card"><h1>WiFi Access</h1>`)
		pw.raw(`<p class="subtitle">Scan the QR code or type the password</p>`)

		if view.Flash != "" {
			class := "flash flash-error"
			if view.FlashOK {
				class = "flash flash-ok"
			}
			pw.raw(`<p class="` + class + `" role="status">`)
			pw.text(view.Flash)
			pw.raw(`</p>`)
		}

		if !view.Available {
			pw.raw(`<p class="error">`)
			pw.text(view.Message)
			pw.raw(`</p>`)
		} else {
			pw.raw(`<div class="label">SSID</div><div class="value">`)
			pw.text(view.NetworkName)
			pw.raw(`</div><div class="label">Password</div><div class="psk">`)
			pw.text(view.Passphrase)
			pw.raw(`</div>`)
			if view.QRPath != "" {
				pw.raw(`<div class="qr"><img src="`)
				pw.text(view.QRPath)
				pw.raw(`" alt="WiFi QR code"></div>`)
			}
			if view.LastRotated != "" {
				pw.raw(`<div class="footer">Last rotated: `)
				pw.text(view.LastRotated)
				pw.raw(`</div>`)
			}
		}

		if view.NextRun != "" {
			pw.raw(`<div class="footer">Next rotation: `)
			pw.text(view.NextRun)
			pw.raw(`</div>`)
		}
		if view.NoticeHTML != "" {
			// Already sanitized by RenderMarkdown.
			pw.raw(`<section class="notice">` + view.NoticeHTML + `</section>`)
		}
		if view.RotateEnabled {
			pw.raw(`<form class="rotate" method="post" action="/rotate">`)
			pw.raw(`<input type="hidden" name="` + csrfFormField + `" value="`)
			pw.text(view.CSRFToken)
			pw.raw(`"><input type="password" name="token" placeholder="Admin token" autocomplete="off" required>`)
			pw.raw(`<button type="submit">Rotate now</button></form>`)
		}

		pw.raw(`</main>`)
		return pw.err
	})
}

// pageWriter accumulates the first write error so components can emit
// markup without checking every call.
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *pageWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}
