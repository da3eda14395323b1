package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func renewalFailedParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "jane@example.com",
		Subject:  "Acme: We could not process your payment",
		BodyHTML: "<p>The renewal charge of 29.00 usd was declined.</p>",
		Tag:      string(subscription.EventRenewalFailed),
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(p *email.SendEmailParams)
		wantErr string
	}{
		{name: "renewal failure notice", mutate: func(*email.SendEmailParams) {}},
		{name: "untagged notice", mutate: func(p *email.SendEmailParams) { p.Tag = "" }},
		{name: "missing recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "  " }, wantErr: "SendTo is required"},
		{name: "customer id instead of address", mutate: func(p *email.SendEmailParams) { p.SendTo = "cus_123" }, wantErr: "SendTo must be a valid email address"},
		{name: "missing subject", mutate: func(p *email.SendEmailParams) { p.Subject = "" }, wantErr: "Subject is required"},
		{name: "blank body", mutate: func(p *email.SendEmailParams) { p.BodyHTML = "\n\t" }, wantErr: "BodyHTML is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			params := renewalFailedParams()
			tt.mutate(&params)

			err := params.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, email.ErrInvalidParams)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func readOutbox(t *testing.T, dir string) (html, envelope map[string]string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	html, envelope = map[string]string{}, map[string]string{}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		switch filepath.Ext(e.Name()) {
		case ".html":
			html[e.Name()] = string(data)
		case ".json":
			envelope[e.Name()] = string(data)
		}
	}
	return html, envelope
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("writes body and envelope named after the event", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		params := renewalFailedParams()

		require.NoError(t, email.NewDevSender(dir).SendEmail(ctx, params))

		html, envelope := readOutbox(t, dir)
		require.Len(t, html, 1)
		require.Len(t, envelope, 1)
		for name, body := range html {
			assert.True(t, strings.HasSuffix(name, "_subscription.renewal_failed.html"), name)
			assert.Equal(t, params.BodyHTML, body)
		}
		for _, raw := range envelope {
			var meta map[string]string
			require.NoError(t, json.Unmarshal([]byte(raw), &meta))
			assert.Equal(t, "jane@example.com", meta["send_to"])
			assert.Equal(t, params.Subject, meta["subject"])
			assert.Equal(t, string(subscription.EventRenewalFailed), meta["tag"])
			assert.NotEmpty(t, meta["timestamp"])
		}
	})

	t.Run("untagged message is named after the subject", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		params := renewalFailedParams()
		params.Tag = ""

		require.NoError(t, email.NewDevSender(dir).SendEmail(ctx, params))

		html, _ := readOutbox(t, dir)
		require.Len(t, html, 1)
		for name := range html {
			assert.Contains(t, name, "acme_we_could_not_process_your_payment")
		}
	})

	t.Run("invalid params write nothing", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		params := renewalFailedParams()
		params.SendTo = ""

		err := email.NewDevSender(dir).SendEmail(ctx, params)
		assert.ErrorIs(t, err, email.ErrInvalidParams)

		html, envelope := readOutbox(t, dir)
		assert.Empty(t, html)
		assert.Empty(t, envelope)
	})

	t.Run("unwritable directory", func(t *testing.T) {
		t.Parallel()
		err := email.NewDevSender("/dev/null/outbox").SendEmail(ctx, renewalFailedParams())
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
	})
}
