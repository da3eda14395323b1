package email

import "errors"

var (
	ErrFailedToSendEmail    = errors.New("email: failed to send email")
	ErrInvalidConfig        = errors.New("email: invalid config")
	ErrInvalidParams        = errors.New("email: invalid params")
	ErrRecipientLookup      = errors.New("email: failed to resolve recipient")
	ErrTemplateRenderFailed = errors.New("email: failed to render template")
)
