package subscription

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/model"
)

// notificationThrottle caps lifecycle emails at one per subscription per
// window. 23 hours instead of 24 so a job scheduled daily never skips a day
// by running a few minutes early.
const notificationThrottle = 23 * time.Hour

// Process is the periodic reconciliation pass, invoked by an external
// scheduler. It flips past-due subscriptions to expired and sends
// renewal-warning and expiry emails with anti-duplicate throttling. Email
// failures are logged and never abort the batch.
func (s *Service) Process(ctx context.Context, now time.Time) error {
	settings, err := s.Settings()
	if err != nil {
		return fmt.Errorf("load portal settings: %w", err)
	}
	noticeDays := settings.ExpiryNoticeDays
	if noticeDays <= 0 {
		noticeDays = 7
	}

	var subs []model.AgencySubscription
	if err := s.db.WithContext(ctx).
		Where("status IN ?", []string{StatusActive, StatusExpired}).
		Find(&subs).Error; err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	for i := range subs {
		sub := &subs[i]
		if sub.EndsAt == nil {
			continue
		}

		daysLeft := calendarDaysBetween(now, *sub.EndsAt)

		if sub.Status == StatusActive && daysLeft >= 0 && daysLeft <= noticeDays && !sub.EndsAt.Before(now) {
			if !sentRecently(sub.LastWarningSentAt, now) {
				s.sendWarningNotice(sub)
				sub.LastWarningSentAt = &now
				if err := s.db.Save(sub).Error; err != nil {
					s.log.Warn("failed to persist warning marker", zap.Uint("subscription_id", sub.ID), zap.Error(err))
				}
			}
		}

		if sub.EndsAt.Before(now) {
			if sub.Status != StatusExpired {
				sub.Status = StatusExpired
				if err := s.db.Save(sub).Error; err != nil {
					s.log.Warn("failed to expire subscription", zap.Uint("subscription_id", sub.ID), zap.Error(err))
					continue
				}
			}
			if !sentRecently(sub.LastExpiredSentAt, now) {
				s.sendExpiryNotice(sub)
				sub.LastExpiredSentAt = &now
				if err := s.db.Save(sub).Error; err != nil {
					s.log.Warn("failed to persist expiry marker", zap.Uint("subscription_id", sub.ID), zap.Error(err))
				}
			}
		}
	}

	return nil
}

func (s *Service) sendWarningNotice(sub *model.AgencySubscription) {
	manageURL := s.baseURL + "/auth/subscription"
	endLabel := sub.EndsAt.Format("02/01/2006")
	subject := "Votre abonnement va expirer"
	htmlBody := fmt.Sprintf(
		"<p>Bonjour,</p>"+
			"<p>Votre abonnement arrive à expiration le <strong>%s</strong>.</p>"+
			"<p>Renouvelez votre plan ici : <a href='%s'>Gérer mon abonnement</a></p>",
		endLabel, manageURL)
	textBody := fmt.Sprintf(
		"Bonjour,\n\nVotre abonnement expire le %s.\nGérer l'abonnement : %s",
		endLabel, manageURL)
	s.notify(sub, subject, htmlBody, textBody, nil)
}

func (s *Service) sendExpiryNotice(sub *model.AgencySubscription) {
	manageURL := s.baseURL + "/auth/subscription"
	subject := "Compte expiré - réabonnement requis"
	htmlBody := fmt.Sprintf(
		"<p>Bonjour,</p>"+
			"<p>Votre abonnement est expiré.</p>"+
			"<p>Pour réactiver votre compte : <a href='%s'>Renouveler maintenant</a></p>",
		manageURL)
	textBody := fmt.Sprintf(
		"Bonjour,\n\nVotre abonnement est expiré.\nRenouveler : %s", manageURL)
	s.notify(sub, subject, htmlBody, textBody, nil)
}

func sentRecently(lastSent *time.Time, now time.Time) bool {
	return lastSent != nil && now.Sub(*lastSent) < notificationThrottle
}

// calendarDaysBetween counts whole calendar days from now's date to end's
// date, negative when end is in the past.
func calendarDaysBetween(now, end time.Time) int {
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(endDay.Sub(nowDay).Hours() / 24)
}
