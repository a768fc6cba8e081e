package notifier

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
)

// Mailer emails each alert to the guardian it is addressed to.
type Mailer struct {
	guardians roster.Repository
	mailSvc   core.EmailService
	logger    core.Logger
}

var _ notification.Fanout = (*Mailer)(nil)

func NewMailer(guardians roster.Repository, mailSvc core.EmailService, logger core.Logger) *Mailer {
	return &Mailer{guardians: guardians, mailSvc: mailSvc, logger: logger}
}

// Fanout never fails the batch: guardians without an email address are skipped.
func (m *Mailer) Fanout(ctx context.Context, batch []notification.SchoolNotification) error {
	messages := make([]*core.EmailMessage, 0, len(batch))
	for _, n := range batch {
		if n.Unresolved() {
			continue
		}
		g, err := m.guardians.GetGuardian(ctx, n.RecipientID)
		if err != nil {
			m.logger.Warn(fmt.Sprintf("emailing notification %s: %v", n.ID, err), err)
			continue
		}
		if g.Email == "" {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:      []mail.Address{{Name: g.Name, Address: g.Email}},
			Subject: fmt.Sprintf("Attendance alert for %s", n.StudentName),
			BodyStr: fmt.Sprintf("Hello %s,\n%s", g.Name, n.Message),
		})
	}
	if len(messages) > 0 {
		m.mailSvc.SendMessages(messages...)
	}
	return nil
}
