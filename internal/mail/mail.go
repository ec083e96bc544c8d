// Package mail sends the emails of greenhouse over SMTP.
package mail

import (
	"bytes"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/mgmu/greenhouse/internal/config"
)

var giftTemplate = template.Must(template.New("gift").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto; padding: 20px; border: 1px solid #ddd; border-radius: 8px; background-color: #f5f9f4;">
	<h2 style="color: #2f5d34; text-align: center;">{{.SenderName}} sent you a plant</h2>
	<p>Hello,</p>
	<p>{{.SenderName}} would like to give you their plant <strong>{{.PlantName}}</strong>, along with its care schedule, photos and notes.</p>
	{{- if .Message}}
	<blockquote style="border-left: 3px solid #9cc59f; margin: 0; padding-left: 12px; color: #555;">{{.Message}}</blockquote>
	{{- end}}
	<p style="text-align: center;"><a href="{{.Link}}" style="display: inline-block; padding: 10px 20px; background-color: #3f8f47; color: #fff; text-decoration: none; border-radius: 5px;">See the gift</a></p>
	<p>Sign in with this email address to accept or decline it.</p>
</div>
`))

// GiftInvite is what the gift invitation says.
type GiftInvite struct {
	To         string
	SenderName string
	PlantName  string
	Message    string
	Link       string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	dialer dialer
	from   string
}

// New returns a mailer for cfg, or nil when SMTP is not configured. A nil
// mailer sends nothing.
func New(cfg config.SMTPConfig) *Mailer {
	if cfg.Host == "" {
		return nil
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (m *Mailer) SendGiftInvite(invite GiftInvite) error {
	if m == nil {
		return nil
	}
	msg, err := m.giftMessage(invite)
	if err != nil {
		return err
	}
	return m.dialer.DialAndSend(msg)
}

func (m *Mailer) giftMessage(invite GiftInvite) (*gomail.Message, error) {
	var body bytes.Buffer
	if err := giftTemplate.Execute(&body, invite); err != nil {
		return nil, err
	}
	message := gomail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", invite.To)
	message.SetHeader("Subject", invite.SenderName+" sent you a plant: "+invite.PlantName)
	message.SetBody("text/html", body.String())
	return message, nil
}
