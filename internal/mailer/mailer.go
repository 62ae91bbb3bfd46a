package mailer

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/config"
	"github.com/EUDYDEV/eproject-saas/prometheus"
)

// Mailer delivers notification emails and records every attempt in the email
// log. All sends are best-effort: a failure is logged and reported back, but
// callers are expected to carry on.
type Mailer struct {
	db       *gorm.DB
	fallback *config.SMTPConfig
	log      *zap.Logger

	// deliver is swapped out in tests.
	deliver func(settings *Settings, toEmail, subject, htmlBody, textBody string) error
}

// New creates a mailer over the given database and environment SMTP fallback.
func New(db *gorm.DB, fallback *config.SMTPConfig, log *zap.Logger) *Mailer {
	return &Mailer{db: db, fallback: fallback, log: log, deliver: sendSMTP}
}

// Send resolves SMTP settings for the branch and delivers one message,
// recording the outcome in the email log.
func (m *Mailer) Send(branchID *uint, toEmail, subject, htmlBody, textBody string, sentBy *uint) error {
	settings, err := EffectiveSettings(m.db, m.fallback, branchID)
	if err != nil {
		m.logAttempt(branchID, toEmail, subject, sentBy, err)
		return err
	}

	err = m.deliver(settings, toEmail, subject, htmlBody, textBody)
	m.logAttempt(branchID, toEmail, subject, sentBy, err)
	return err
}

// SendSubscriptionNotice delivers a billing lifecycle email to the
// subscription owner. Implements subscription.Notifier.
func (m *Mailer) SendSubscriptionNotice(sub *model.AgencySubscription, subject, htmlBody, textBody string, sentBy *uint) error {
	var owner model.User
	if err := m.db.First(&owner, sub.OwnerUserID).Error; err != nil || owner.Email == "" {
		err = errors.New("subscription owner email unavailable")
		branchID := sub.BranchID
		m.logAttempt(&branchID, "", subject, sentBy, err)
		return err
	}

	branchID := sub.BranchID
	return m.Send(&branchID, owner.Email, subject, htmlBody, textBody, sentBy)
}

// logAttempt writes an email log row. The log write itself is best-effort.
func (m *Mailer) logAttempt(branchID *uint, toEmail, subject string, sentBy *uint, sendErr error) {
	row := model.EmailLog{
		BranchID: branchID,
		ToEmail:  toEmail,
		Subject:  subject,
		Status:   "sent",
		SentBy:   sentBy,
	}
	if sendErr != nil {
		row.Status = "failed"
		row.Error = sendErr.Error()
	}
	prometheus.RecordEmail(row.Status)

	if err := m.db.Create(&row).Error; err != nil {
		m.log.Warn("email log write failed", zap.Error(err))
	}
	if sendErr != nil {
		m.log.Warn("email delivery failed",
			zap.String("to", toEmail),
			zap.String("subject", subject),
			zap.Error(sendErr))
	}
}
