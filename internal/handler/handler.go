package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/mailer"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
)

var (
	resolver *authz.Resolver
	subSvc   *subscription.Service
	mail     *mailer.Mailer
	validate = validator.New()
)

// Init wires the handler package to its services. Call once at boot, after
// the database is up.
func Init(r *authz.Resolver, s *subscription.Service, m *mailer.Mailer) {
	resolver = r
	subSvc = s
	mail = m
}
