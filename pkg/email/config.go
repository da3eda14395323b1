package email

// Config holds email delivery settings.
// Without Postmark tokens the billing CLI falls back to DevSender writing into DevOutputDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	DevOutputDir         string `env:"EMAIL_DEV_OUTPUT_DIR" envDefault:"./tmp/emails"`
	ProductName          string `env:"EMAIL_PRODUCT_NAME" envDefault:"Billing"`
}

// HasPostmark reports whether both Postmark tokens are configured.
func (c Config) HasPostmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
