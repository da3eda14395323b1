package templates_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/email/templates"
)

func TestNoticeEmail(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(), templates.NoticeEmail(templates.Notice{
		Product:      "Acme <Pro>",
		Heading:      "Payment failed",
		Paragraphs:   []string{"Charge of 29.00 USD was declined.", "<script>alert(1)</script>"},
		ActionLabel:  "Update payment method",
		ActionURL:    "https://app.example.com/billing?tab=methods&x=1",
		SupportEmail: "support@example.com",
	}))
	require.NoError(t, err)

	assert.Contains(t, html, "<title>Acme &lt;Pro&gt;</title>")
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "Charge of 29.00 USD was declined.")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, `href="https://app.example.com/billing?tab=methods&amp;x=1"`)
	assert.Contains(t, html, "support@example.com")
}

func TestNoticeEmail_UnsafeURL(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(), templates.NoticeEmail(templates.Notice{
		Heading:     "Hi",
		ActionLabel: "Click",
		ActionURL:   "javascript:alert(1)",
	}))
	require.NoError(t, err)
	assert.NotContains(t, html, "javascript:")
}
