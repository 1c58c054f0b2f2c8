package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/shule/core"
)

const (
	sgHost     = "https://api.sendgrid.com"
	sgEndpoint = "/v3/mail/send"
)

// sendgridService delivers rendered messages through the SendGrid v3 API.
// Delivery is fire-and-forget; failures are logged, never returned.
type sendgridService struct {
	conf   *core.Config
	key    string
	sender *sgmail.Email
	prefix string
	logger core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(logger core.Logger, conf *core.Config) *sendgridService {
	return &sendgridService{
		conf:   conf,
		key:    conf.SendgridAPIKey,
		sender: sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		prefix: "[" + conf.AppName + "] ",
		logger: logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(svc.conf); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if msg.HasRecipients() && msg.HasContent() {
				svc.deliver(*msg)
			}
		}()
	}
}

func (svc sendgridService) deliver(msg core.EmailMessage) {
	req := sendgrid.GetRequest(svc.key, sgEndpoint, sgHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.build(msg))

	res, err := sendgrid.API(req)
	switch {
	case err != nil:
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
	case res.StatusCode >= http.StatusBadRequest:
		svc.logger.Error(fmt.Sprintf("sending email - status: %d - Body: %s", res.StatusCode, res.Body))
	}
}

func (svc sendgridService) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.prefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(toSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(toSGEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(toSGEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.sender)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	return m
}

func toSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}
