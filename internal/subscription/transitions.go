package subscription

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/prometheus"
)

// ActivationPeriod is how much paid time one activation grants.
const ActivationPeriod = 30 * 24 * time.Hour

// ErrAlreadyActive is returned when a payment declaration arrives for a
// subscription that is already active.
var ErrAlreadyActive = errors.New("subscription is already active")

// MarkPaymentSent records the owner's self-service payment declaration and
// moves the subscription to pending_review. Repeating the declaration is
// harmless; declaring against an active subscription is refused.
func (s *Service) MarkPaymentSent(sub *model.AgencySubscription, paymentReference string, now time.Time) error {
	if sub.Status == StatusActive {
		return ErrAlreadyActive
	}

	sub.Status = StatusPendingReview
	sub.PaymentReference = strings.TrimSpace(paymentReference)
	if err := s.db.Save(sub).Error; err != nil {
		return err
	}
	prometheus.RecordTransition("payment_declared")

	ref := sub.PaymentReference
	if ref == "" {
		ref = "Non renseignée"
	}
	subject := "Paiement reçu - vérification en cours"
	htmlBody := fmt.Sprintf(
		"<p>Bonjour,</p>"+
			"<p>Nous avons bien reçu votre déclaration de paiement d'abonnement.</p>"+
			"<p><strong>Référence :</strong> %s</p>"+
			"<p>Votre compte sera actif après vérification par notre équipe.</p>"+
			"<p>Cordialement,<br>Service facturation E-PROJECT</p>", ref)
	textBody := fmt.Sprintf(
		"Bonjour,\n\nNous avons bien reçu votre déclaration de paiement d'abonnement.\nRéférence : %s\n\n"+
			"Votre compte sera actif après vérification par notre équipe.\n\nService facturation E-PROJECT", ref)
	s.notify(sub, subject, htmlBody, textBody, nil)
	return nil
}

// Activate verifies a payment and opens (or extends) the paid period. When
// the previous period has not ended yet the new one starts where it stops, so
// a renewal made before expiry never shortens the remaining time.
func (s *Service) Activate(sub *model.AgencySubscription, actorID *uint, now time.Time) error {
	start := now
	if sub.EndsAt != nil && sub.EndsAt.After(now) {
		start = *sub.EndsAt
	}
	end := start.Add(ActivationPeriod)

	sub.Status = StatusActive
	sub.PaidAt = &now
	sub.StartsAt = &start
	sub.EndsAt = &end
	if err := s.db.Save(sub).Error; err != nil {
		return err
	}
	prometheus.RecordTransition("activate")

	ownerName := s.ownerDisplayName(sub)
	endLabel := end.Format("02/01/2006")
	subject := "Abonnement activé - votre compte est désormais actif"
	htmlBody := fmt.Sprintf(
		"<p>Bonjour %s,</p>"+
			"<p>Bonne nouvelle : votre abonnement a été activé par l'équipe E-PROJECT.</p>"+
			"<p><strong>Plan :</strong> %s<br><strong>Validité jusqu'au :</strong> %s</p>"+
			"<p>Vous pouvez maintenant vous connecter et utiliser toutes les fonctionnalités de votre dashboard.</p>"+
			"<p>Cordialement,<br>Service facturation E-PROJECT</p>",
		ownerName, strings.ToUpper(NormalizePlanCode(sub.PlanCode)), endLabel)
	textBody := fmt.Sprintf(
		"Bonjour %s,\n\nBonne nouvelle : votre abonnement a été activé par l'équipe E-PROJECT.\n"+
			"Plan : %s\nValidité jusqu'au : %s\n\nService facturation E-PROJECT",
		ownerName, strings.ToUpper(NormalizePlanCode(sub.PlanCode)), endLabel)
	s.notify(sub, subject, htmlBody, textBody, actorID)
	return nil
}

// Expire marks the subscription expired immediately. Used by the manual IT
// action; the periodic job flips past-due subscriptions the same way.
func (s *Service) Expire(sub *model.AgencySubscription, actorID *uint, now time.Time) error {
	sub.Status = StatusExpired
	sub.EndsAt = &now
	if err := s.db.Save(sub).Error; err != nil {
		return err
	}
	prometheus.RecordTransition("expire")

	ownerName := s.ownerDisplayName(sub)
	subject := "Abonnement expiré - réabonnement requis"
	htmlBody := fmt.Sprintf(
		"<p>Bonjour %s,</p>"+
			"<p>Votre abonnement a été marqué expiré par l'équipe E-PROJECT.</p>"+
			"<p>Pour réactiver votre compte, connectez-vous et effectuez le réabonnement depuis votre espace abonnement.</p>"+
			"<p>Cordialement,<br>Service facturation E-PROJECT</p>", ownerName)
	textBody := fmt.Sprintf(
		"Bonjour %s,\n\nVotre abonnement a été marqué expiré par l'équipe E-PROJECT.\n"+
			"Pour réactiver votre compte, connectez-vous et effectuez le réabonnement depuis votre espace abonnement.\n\n"+
			"Service facturation E-PROJECT", ownerName)
	s.notify(sub, subject, htmlBody, textBody, actorID)
	return nil
}

// CoerceFreeMode force-activates a subscription when billing is not enforced
// platform-wide. No payment, no email, no blocking.
func (s *Service) CoerceFreeMode(sub *model.AgencySubscription, now time.Time) error {
	if sub.Status == StatusActive {
		return nil
	}
	sub.Status = StatusActive
	if sub.StartsAt == nil {
		sub.StartsAt = &now
	}
	if sub.PaidAt == nil {
		sub.PaidAt = &now
	}
	if err := s.db.Save(sub).Error; err != nil {
		return err
	}
	prometheus.RecordTransition("free_mode_coerce")
	return nil
}

func (s *Service) ownerDisplayName(sub *model.AgencySubscription) string {
	var owner model.User
	if err := s.db.First(&owner, sub.OwnerUserID).Error; err != nil {
		return "Client"
	}
	if owner.DisplayName != "" {
		return owner.DisplayName
	}
	if owner.Username != "" {
		return owner.Username
	}
	return "Client"
}

func (s *Service) notify(sub *model.AgencySubscription, subject, htmlBody, textBody string, sentBy *uint) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendSubscriptionNotice(sub, subject, htmlBody, textBody, sentBy); err != nil {
		s.log.Warn("subscription notice delivery failed",
			zap.Uint("subscription_id", sub.ID),
			zap.String("subject", subject),
			zap.Error(err))
	}
}
