// Package emailsvc delivers core.EmailMessage values: through a workflow webhook, SendGrid, or stdout.
package emailsvc

import "github.com/trezcool/slopeside/core"

// Drivers
const (
	DriverWebhook  = "webhook"
	DriverSendgrid = "sendgrid"
	DriverConsole  = "console"
)

// NewService picks the delivery driver from the config (console by default).
func NewService(conf *core.Config, renderer *core.EmailRenderer, logger core.Logger) core.EmailService {
	switch conf.Email.Driver {
	case DriverWebhook:
		return NewWebhookService(conf, renderer, logger)
	case DriverSendgrid:
		return NewSendgridService(conf, renderer, logger)
	default:
		return NewConsoleService(conf, renderer, logger)
	}
}
