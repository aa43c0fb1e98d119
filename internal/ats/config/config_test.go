package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite::memory:")
	t.Setenv("SMTP_USER", "ats@example.com")
	t.Setenv("SMTP_PASS", "secret")
	t.Setenv("MAIL_CC", " a@x.com, ,b@x.com ")
	t.Setenv("SUPERVISOR_EMAILS_JSON", `{"JOHN DOE":"j@x.com"}`)

	cfg, err := ReadConfig()
	require.NoError(t, err)

	assert.Equal(t, "smtp.gmail.com", cfg.SMTPServer)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "ats@example.com", cfg.MailFrom)
	assert.Equal(t, 8, cfg.SMTPTimeout)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, cfg.MailCC)
	assert.Equal(t, map[string]string{"JOHN DOE": "j@x.com"}, cfg.SupervisorEmails)
	assert.Equal(t, StorageNone, cfg.StorageBackend)
	assert.Equal(t, "ats_pdfs", cfg.PDFBucket)
	assert.Equal(t, 3, cfg.MaxParticipants)
	assert.True(t, cfg.MailEnabled())
}

func TestReadConfigRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := ReadConfig()
	assert.Error(t, err)
}

func TestReadConfigUnknownStorage(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite::memory:")
	t.Setenv("STORAGE_BACKEND", "ftp")
	_, err := ReadConfig()
	assert.Error(t, err)
}

func TestParseSupervisorEmailsInvalid(t *testing.T) {
	assert.Empty(t, ParseSupervisorEmails("{not json"))
	assert.Empty(t, ParseSupervisorEmails(""))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "s****t", maskSecret("SMTPPassword", "secret"))
	assert.Equal(t, "smtp.gmail.com", maskSecret("SMTPServer", "smtp.gmail.com"))
	assert.Equal(t, "**", maskSecret("SecretKey", "ab"))
}
