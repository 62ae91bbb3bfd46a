package mailer

import (
	"errors"
	"strings"

	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/config"
)

// Settings is the one resolved SMTP configuration a send actually uses,
// whatever layer it came from.
type Settings struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	UseTLS    bool
}

// ErrNoSMTP is returned when no layer of the fallback chain yields usable
// SMTP settings.
var ErrNoSMTP = errors.New("no SMTP settings available")

// EffectiveSettings resolves SMTP settings with a fixed precedence: the
// branch's own row, then the platform-global row (nil branch), then the
// environment fallback from config.
func EffectiveSettings(db *gorm.DB, fallback *config.SMTPConfig, branchID *uint) (*Settings, error) {
	if branchID != nil && *branchID != 0 {
		var row model.SMTPSetting
		if err := db.Where("branch_id = ?", *branchID).First(&row).Error; err == nil {
			return fromRow(&row), nil
		}
	}

	var global model.SMTPSetting
	if err := db.Where("branch_id IS NULL").First(&global).Error; err == nil {
		return fromRow(&global), nil
	}

	if fallback != nil && fallback.Configured() {
		return &Settings{
			Host:      fallback.Host,
			Port:      fallback.Port,
			Username:  fallback.Username,
			Password:  fallback.Password,
			FromEmail: fallback.FromEmail,
			UseTLS:    fallback.UseTLS,
		}, nil
	}

	return nil, ErrNoSMTP
}

func fromRow(row *model.SMTPSetting) *Settings {
	return &Settings{
		Host:      row.Host,
		Port:      row.Port,
		Username:  row.Username,
		Password:  row.Password,
		FromEmail: row.FromEmail,
		UseTLS:    row.UseTLS,
	}
}

// EffectiveFrom picks the From address that will actually deliver. Gmail
// relays reject or junk mail whose From does not match the authenticated
// account, so those force the username.
func (s *Settings) EffectiveFrom() string {
	from := strings.ToLower(strings.TrimSpace(s.FromEmail))
	username := strings.ToLower(strings.TrimSpace(s.Username))

	if from == "" {
		return username
	}
	if strings.Contains(strings.ToLower(s.Host), "gmail") && username != "" && from != username {
		return username
	}
	return from
}

// sendSMTP delivers one message through the resolved settings.
func sendSMTP(settings *Settings, toEmail, subject, htmlBody, textBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", settings.EffectiveFrom())
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
		m.AddAlternative("text/html", htmlBody)
	} else {
		m.SetBody("text/html", htmlBody)
	}

	d := gomail.NewDialer(settings.Host, settings.Port, settings.Username, settings.Password)
	return d.DialAndSend(m)
}
