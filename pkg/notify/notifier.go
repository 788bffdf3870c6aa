// Package notify delivers failure reports to the requesting issuer. Reports
// are fire-and-forget: the anchoring path never blocks on, or observes the
// outcome of, a delivery attempt.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/metrics"
	"github.com/nextid/blockchain/pkg/worker"
)

// Notifier receives (recipient, error) on any submission or verification
// infrastructure failure.
type Notifier interface {
	ReportIssue(ctx context.Context, email string, issue error)
}

// LogNotifier records failure reports in the service log only. It is the
// default sink when no SMTP endpoint is configured, and the test double.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) ReportIssue(_ context.Context, email string, issue error) {
	metrics.FailureReportsTotal.Inc()
	n.log.Error("blockchain issue reported",
		zap.String("recipient", email),
		zap.Error(issue),
	)
}

// SMTPNotifier mails failure reports to the requesting issuer. Delivery runs
// on the shared worker pool so the submission pipeline returns immediately.
type SMTPNotifier struct {
	addr string
	from string
	pool *worker.Pool
	log  *zap.Logger

	// send is swapped in tests
	send func(addr, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(addr, from string, pool *worker.Pool, log *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		addr: addr,
		from: from,
		pool: pool,
		log:  log.With(zap.String("component", "notifier")),
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

func (n *SMTPNotifier) ReportIssue(_ context.Context, email string, issue error) {
	metrics.FailureReportsTotal.Inc()

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Blockchain anchoring failure\r\n\r\n"+
			"An operation you requested failed at %s.\r\n\r\n%v\r\n",
		n.from, email, time.Now().UTC().Format(time.RFC3339), issue,
	))

	err := n.pool.Submit(func(context.Context) error {
		if err := n.send(n.addr, n.from, []string{email}, msg); err != nil {
			return fmt.Errorf("send failure report to %s: %w", email, err)
		}
		return nil
	})
	if err != nil {
		n.log.Warn("failure report dropped", zap.String("recipient", email), zap.Error(err))
	}
}
