package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/meridianpay/authcore"
)

// SMTPConfig carries mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier delivers account mail over SMTP.
type SMTPNotifier struct {
	config SMTPConfig
}

// NewSMTPNotifier validates the relay settings and returns a ready
// notifier.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("smtp host and port required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address required")
	}
	return &SMTPNotifier{config: cfg}, nil
}

// Send renders the template and delivers it. The context governs the
// caller's patience, not the SMTP dial; gomail handles its own timeouts.
func (n *SMTPNotifier) Send(ctx context.Context, template, recipient string, data map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := render(template, data)

	m := gomail.NewMessage()
	m.SetHeader("From", n.config.From)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(n.config.Host, n.config.Port, n.config.Username, n.config.Password)
	return d.DialAndSend(m)
}

func render(template string, data map[string]string) (subject, body string) {
	code := data["code"]
	switch template {
	case authcore.TemplateVerifyEmail:
		return "Verify your email",
			fmt.Sprintf("Your verification code is: %s\n\nThe code expires shortly; request a new one if it stops working.", code)
	case authcore.TemplateWelcome:
		return "Welcome aboard",
			"Your account is verified and ready to use."
	case authcore.TemplateLoginCode:
		return "Your login code",
			fmt.Sprintf("Your login verification code is: %s\n\nIf you did not try to sign in, change your password now.", code)
	case authcore.TemplateResetCode:
		return "Password reset code",
			fmt.Sprintf("Your password reset code is: %s\n\nIf you did not request a reset, you can ignore this message.", code)
	case authcore.TemplatePasswordChanged:
		return "Your password was changed",
			"Your account password was just changed. If this was not you, contact support immediately."
	default:
		return "Notification", fmt.Sprintf("Code: %s", code)
	}
}
