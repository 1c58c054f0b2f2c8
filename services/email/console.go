package emailsvc

import (
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// SentMessages captures every message the console service rendered; test
// helpers below guard it with outboxMu.
var (
	SentMessages = make([]core.EmailMessage, 0)
	outboxMu     sync.Mutex
)

// consoleService writes rendered messages to the process log instead of
// delivering them. The default EmailService outside production.
type consoleService struct {
	conf   *core.Config
	from   mail.Address
	prefix string
	quiet  bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config) core.EmailService {
	return &consoleService{
		conf:   conf,
		from:   conf.DefaultFromEmail,
		prefix: "[" + conf.AppName + "] ",
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		log.Fatalf("%+v", errors.Wrap(err, "rendering email"))
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}
	svc.print(*msg)
	outboxMu.Lock()
	SentMessages = append(SentMessages, *msg)
	outboxMu.Unlock()
}

func (svc consoleService) print(msg core.EmailMessage) {
	var b strings.Builder
	for _, header := range []struct{ name, value string }{
		{"From", svc.from.String()},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"Subject", svc.prefix + msg.Subject},
		{"To", joinAddresses(msg.To)},
		{"CC", joinAddresses(msg.Cc)},
		{"BCC", joinAddresses(msg.Bcc)},
		{"Content-Type", "text/plain"},
	} {
		_, _ = fmt.Fprintf(&b, "%s: %s\r\n", header.name, header.value)
	}
	_, _ = fmt.Fprintf(&b, "\r\n%s\r\n", msg.TextContent)

	if !svc.quiet {
		log.Println(b.String())
	}
}

func joinAddresses(addrs []mail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

// consoleServiceMock delivers synchronously and skips log output so tests
// can assert on the captured outbox deterministically.
type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock(conf *core.Config) core.EmailService {
	return &consoleServiceMock{
		consoleService: consoleService{
			conf:   conf,
			from:   conf.DefaultFromEmail,
			prefix: "[" + conf.AppName + "] ",
			quiet:  true,
		},
	}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.sendMessage(msg)
	}
}

// ClearSentMessages empties the captured outbox between tests.
func ClearSentMessages() {
	outboxMu.Lock()
	SentMessages = SentMessages[:0]
	outboxMu.Unlock()
}

// GetSentMessages returns a copy of the captured outbox.
func GetSentMessages() []core.EmailMessage {
	outboxMu.Lock()
	defer outboxMu.Unlock()
	out := make([]core.EmailMessage, len(SentMessages))
	copy(out, SentMessages)
	return out
}
