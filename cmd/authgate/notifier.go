package main

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	authgate "github.com/authgate/authgate"
)

func newNotifier(smtpAddr, from string, logger *log.Logger) authgate.Notifier {
	if smtpAddr == "" {
		return &logNotifier{logger: logger}
	}
	return &smtpNotifier{addr: smtpAddr, from: from}
}

// smtpNotifier delivers verification mails through a plain SMTP relay.
type smtpNotifier struct {
	addr string
	from string
}

func (n *smtpNotifier) Send(_ context.Context, recipient, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.from, recipient, subject, body)
	return smtp.SendMail(n.addr, nil, n.from, []string{recipient}, []byte(msg))
}

// logNotifier prints mails to the log instead of delivering them, for
// development setups without an SMTP relay.
type logNotifier struct {
	logger *log.Logger
}

func (n *logNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.logger.Printf("mail to %s: %s\n%s", recipient, subject, body)
	return nil
}
