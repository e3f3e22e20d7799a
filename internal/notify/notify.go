package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"budget-service/internal/config"
	"budget-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending alert emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// OverdraftAlert sends an email when a transaction leaves an allocation
// with a negative balance.
func (s *Sender) OverdraftAlert(alloc *models.Allocation, txn *models.Transaction) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.AlertEmail}
	e.Subject = "Allocation Overdrawn"

	body := fmt.Sprintf(
		"Allocation %d has gone negative.\n\n"+
			"Transaction: %d (%s)\n"+
			"Amount: %d\n"+
			"Resulting balance: %d\n"+
			"Time: %s\n",
		alloc.ID, txn.ID, txn.Description, txn.Amount, alloc.Balance,
		time.Now().Format("2006-01-02 15:04:05"),
	)
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send overdraft alert to %s: %v", s.cfg.AlertEmail, err)
		return fmt.Errorf("failed to send overdraft alert: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.AlertEmail, e.Subject)
	return nil
}
