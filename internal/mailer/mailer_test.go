package mailer

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/config"
)

func newMailerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.SMTPSetting{},
		&model.EmailLog{},
		&model.AgencySubscription{},
	))
	return db
}

func uintPtr(v uint) *uint { return &v }

func TestEffectiveSettingsBranchRowWins(t *testing.T) {
	db := newMailerDB(t)
	require.NoError(t, db.Create(&model.SMTPSetting{
		BranchID: uintPtr(7), Host: "smtp.branch.example", Port: 587,
		Username: "branch@example.com", Password: "secret",
		FromEmail: "branch@example.com", UseTLS: true, UpdatedBy: 1,
	}).Error)
	require.NoError(t, db.Create(&model.SMTPSetting{
		Host: "smtp.global.example", Port: 587,
		Username: "global@example.com", Password: "secret",
		FromEmail: "global@example.com", UseTLS: true, UpdatedBy: 1,
	}).Error)

	settings, err := EffectiveSettings(db, nil, uintPtr(7))
	require.NoError(t, err)
	assert.Equal(t, "smtp.branch.example", settings.Host)
}

func TestEffectiveSettingsGlobalThenEnvFallback(t *testing.T) {
	db := newMailerDB(t)
	require.NoError(t, db.Create(&model.SMTPSetting{
		Host: "smtp.global.example", Port: 587,
		Username: "global@example.com", Password: "secret",
		FromEmail: "global@example.com", UseTLS: true, UpdatedBy: 1,
	}).Error)

	envFallback := &config.SMTPConfig{
		Host: "smtp.env.example", Port: 587,
		Username: "env@example.com", Password: "secret",
		FromEmail: "env@example.com", UseTLS: true,
	}

	// No branch row: the global row wins over the env fallback.
	settings, err := EffectiveSettings(db, envFallback, uintPtr(9))
	require.NoError(t, err)
	assert.Equal(t, "smtp.global.example", settings.Host)

	// No rows at all: the env fallback is last.
	empty := newMailerDB(t)
	settings, err = EffectiveSettings(empty, envFallback, nil)
	require.NoError(t, err)
	assert.Equal(t, "smtp.env.example", settings.Host)

	_, err = EffectiveSettings(empty, &config.SMTPConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoSMTP)
}

func TestEffectiveFromGmailForcesUsername(t *testing.T) {
	s := &Settings{Host: "smtp.gmail.com", Username: "account@gmail.com", FromEmail: "noreply@agency.example"}
	assert.Equal(t, "account@gmail.com", s.EffectiveFrom())

	s.Host = "smtp.agency.example"
	assert.Equal(t, "noreply@agency.example", s.EffectiveFrom())

	s.FromEmail = ""
	assert.Equal(t, "account@gmail.com", s.EffectiveFrom())
}

func TestSendRecordsOutcome(t *testing.T) {
	db := newMailerDB(t)
	require.NoError(t, db.Create(&model.SMTPSetting{
		Host: "smtp.global.example", Port: 587,
		Username: "global@example.com", Password: "secret",
		FromEmail: "global@example.com", UseTLS: true, UpdatedBy: 1,
	}).Error)

	m := New(db, nil, zap.NewNop())
	m.deliver = func(settings *Settings, toEmail, subject, htmlBody, textBody string) error {
		return nil
	}

	require.NoError(t, m.Send(nil, "dest@example.com", "Sujet", "<p>corps</p>", "corps", nil))

	var logRow model.EmailLog
	require.NoError(t, db.First(&logRow).Error)
	assert.Equal(t, "sent", logRow.Status)
	assert.Equal(t, "dest@example.com", logRow.ToEmail)

	m.deliver = func(settings *Settings, toEmail, subject, htmlBody, textBody string) error {
		return assert.AnError
	}
	assert.Error(t, m.Send(nil, "dest@example.com", "Sujet", "<p>corps</p>", "corps", nil))

	var failed model.EmailLog
	require.NoError(t, db.Where("status = ?", "failed").First(&failed).Error)
	assert.NotEmpty(t, failed.Error)
}

func TestSendSubscriptionNoticeResolvesOwnerEmail(t *testing.T) {
	db := newMailerDB(t)
	require.NoError(t, db.Create(&model.SMTPSetting{
		Host: "smtp.global.example", Port: 587,
		Username: "global@example.com", Password: "secret",
		FromEmail: "global@example.com", UseTLS: true, UpdatedBy: 1,
	}).Error)

	owner := model.User{Username: "owner", Email: "owner@example.com", PasswordHash: "x", Role: "FOUNDER", IsActive: true}
	require.NoError(t, db.Create(&owner).Error)
	sub := model.AgencySubscription{BranchID: 1, OwnerUserID: owner.ID, PlanCode: "starter", Status: "pending"}
	require.NoError(t, db.Create(&sub).Error)

	var sentTo string
	m := New(db, nil, zap.NewNop())
	m.deliver = func(settings *Settings, toEmail, subject, htmlBody, textBody string) error {
		sentTo = toEmail
		return nil
	}

	require.NoError(t, m.SendSubscriptionNotice(&sub, "Sujet", "<p>corps</p>", "corps", nil))
	assert.Equal(t, "owner@example.com", sentTo)
}
