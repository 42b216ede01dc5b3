package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"mfa-service/pkg/utils"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Email represents an email message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Mailer sends email over SMTP. With no SMTP host configured it only logs
// the message, which is what local development relies on.
type Mailer struct {
	from   string
	dialer *gomail.Dialer
	log    *zap.Logger
}

func New(cfg utils.EmailConfig, log *zap.Logger) *Mailer {
	m := &Mailer{
		from: cfg.From,
		log:  log.With(zap.String("component", "mailer")),
	}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	}
	return m
}

// Send sends a single email.
func (m *Mailer) Send(email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	if m.dialer == nil {
		m.log.Warn("SMTP not configured, email not sent",
			zap.Strings("to", email.To),
			zap.String("subject", email.Subject),
		)
		m.log.Debug("Email body", zap.String("body", email.Body))
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %v: %w", email.To, err)
	}

	m.log.Info("Email sent", zap.Strings("to", email.To), zap.String("subject", email.Subject))
	return nil
}

// OTPEmail is the data rendered into an OTP message
type OTPEmail struct {
	Username      string
	Code          string
	Purpose       string
	ExpiryMinutes int
}

var otpText = texttemplate.Must(texttemplate.New("otp_text").Parse(
	`Hi {{.Username}},

Your {{.Purpose}} code is {{.Code}}.
It expires in {{.ExpiryMinutes}} minutes. If you did not request it, ignore this email.
`))

var otpHTML = template.Must(template.New("otp_html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:Helvetica,Arial,sans-serif;">
  <p>Hi <strong>{{.Username}}</strong>,</p>
  <p>Your {{.Purpose}} code is:</p>
  <p style="font-size:28px;font-weight:700;letter-spacing:6px;font-family:'Courier New',monospace;">{{.Code}}</p>
  <p>It expires in <strong>{{.ExpiryMinutes}} minutes</strong>. If you did not request it, ignore this email.</p>
</body>
</html>`))

// RenderOTP builds the text and HTML bodies for an OTP email
func RenderOTP(data OTPEmail) (text, html string, err error) {
	var tb, hb bytes.Buffer
	if err := otpText.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("render otp text: %w", err)
	}
	if err := otpHTML.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("render otp html: %w", err)
	}
	return tb.String(), hb.String(), nil
}
