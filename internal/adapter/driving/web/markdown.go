package web

import (
	"bytes"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// noticeRenderer converts the operator notice to HTML. Raw HTML in the
// source is dropped by goldmark and the output is sanitized again.
type noticeRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

var notices = sync.OnceValue(func() *noticeRenderer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &noticeRenderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify, extension.Table)),
		policy: policy,
	}
})

// RenderMarkdown converts a markdown notice to sanitized HTML. Empty input
// yields an empty string; text that fails to convert is escaped as plain text.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	r := notices()
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return bluemonday.StrictPolicy().Sanitize(src)
	}
	return r.policy.Sanitize(buf.String())
}
