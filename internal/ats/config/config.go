// Управление конфигурацией сервиса ATS из переменных окружения и файла .env.
// Содержит структуру Config для хранения параметров и функцию ReadConfig для их загрузки.
//
// Основные возможности:
//   - Загрузка .env (если файл существует) перед чтением окружения.
//   - Заполнение полей по тегам `env` (string, int, bool).
//   - Маскировка секретных значений в логах.
//   - Значения по умолчанию для SMTP, хранилища и параметров формы.
//   - Разбор списка копий и справочника адресов супервайзеров.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cicsa-sst/ats/internal/ats/types"
)

type Config struct {
	SecretKey string `env:"SECRET_KEY"`

	DatabaseDSN string `env:"DATABASE_URL"`

	HTTPAddr    string `env:"HTTP_ADDR"`
	MetricsAddr string `env:"METRICS_ADDR"`

	TempDir           string `env:"TEMP_DIR"`
	TempMaxAgeMinutes int    `env:"TEMP_MAX_AGE_MINUTES"`

	FrontFilesPath  string `env:"FRONT_PATH"`
	CaptchaDisabled bool   `env:"CAPTCHA_DISABLED"`

	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASS"`
	SMTPServer   string `env:"SMTP_SERVER"`
	SMTPPort     int    `env:"SMTP_PORT"`
	MailFrom     string `env:"MAIL_FROM"`
	SMTPTimeout  int    `env:"SMTP_TIMEOUT"`

	MailToDefault        string `env:"MAIL_TO_DEFAULT"`
	MailCCRaw            string `env:"MAIL_CC"`
	SupervisorEmailsJSON string `env:"SUPERVISOR_EMAILS_JSON"`

	MailCC           []string
	SupervisorEmails map[string]string

	StorageBackend   string `env:"STORAGE_BACKEND"`
	AWSEndpoint      string `env:"AWS_S3_ENDPOINT_URL"`
	AWSAccessKey     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey     string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion        string `env:"AWS_REGION"`
	AWSUseSSL        bool   `env:"AWS_S3_USE_SSL"`
	PDFBucket        string `env:"SUPABASE_PDF_BUCKET"`
	StoragePublicURL string `env:"STORAGE_PUBLIC_URL"`

	UploadLink string `env:"ONEDRIVE_UPLOAD_LINK"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`

	MaxParticipants int    `env:"MAX_PARTICIPANTS"`
	CompanyName     string `env:"COMPANY_NAME"`
	WorkArea        string `env:"WORK_AREA"`
}

const (
	StorageMinio = "minio"
	StorageS3    = "s3"
	StorageNone  = "none"
)

// ReadConfig загружает .env и переменные окружения, применяет значения по умолчанию.
// Возвращает ошибку, если не задан DATABASE_URL или указан неизвестный STORAGE_BACKEND.
func ReadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, using system environment")
	} else {
		slog.Info(".env file loaded")
	}

	config := &Config{}
	envConfig("env", config)

	if config.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	config.applyDefaults()

	switch config.StorageBackend {
	case StorageMinio, StorageS3, StorageNone:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", config.StorageBackend)
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.SecretKey == "" {
		slog.Warn("SECRET_KEY not set, using insecure default")
		c.SecretKey = "supersecret"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":2112"
	}
	if c.TempDir == "" {
		c.TempDir = "temp"
	}
	if c.TempMaxAgeMinutes <= 0 {
		c.TempMaxAgeMinutes = 60
	}

	if c.SMTPServer == "" {
		c.SMTPServer = "smtp.gmail.com"
	}
	if c.SMTPPort <= 0 {
		c.SMTPPort = 587
	}
	if c.MailFrom == "" {
		c.MailFrom = c.SMTPUser
	}
	if c.SMTPTimeout <= 0 {
		c.SMTPTimeout = 8
	}

	c.MailCC = ParseList(c.MailCCRaw)
	c.SupervisorEmails = ParseSupervisorEmails(c.SupervisorEmailsJSON)

	if c.StorageBackend == "" {
		c.StorageBackend = StorageMinio
		if c.AWSEndpoint == "" {
			c.StorageBackend = StorageNone
		}
	}
	if c.PDFBucket == "" {
		c.PDFBucket = "ats_pdfs"
	}
	if c.AWSRegion == "" {
		c.AWSRegion = "us-east-1"
	}

	if c.MaxParticipants <= 0 {
		c.MaxParticipants = types.DefaultMaxParticipants
	}
	if c.CompanyName == "" {
		c.CompanyName = "CICSA PERU S.A.C."
	}
	if c.WorkArea == "" {
		c.WorkArea = "MRD F.O. LIMA METROP."
	}
}

// MailEnabled true, если заданы учетные данные SMTP.
func (c *Config) MailEnabled() bool {
	return c.SMTPUser != "" && c.SMTPPassword != ""
}

func (c *Config) SMTPTimeoutDuration() time.Duration {
	if c.SMTPTimeout <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.SMTPTimeout) * time.Second
}

func (c *Config) TempMaxAge() time.Duration {
	return time.Duration(c.TempMaxAgeMinutes) * time.Minute
}

// ParseList разбирает список через запятую, пустые элементы отбрасываются.
func ParseList(raw string) []string {
	var res []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}

// ParseSupervisorEmails разбирает JSON объект имя→адрес. Некорректный JSON дает пустой справочник.
func ParseSupervisorEmails(raw string) map[string]string {
	res := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return res
	}
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		slog.Warn("Parse SUPERVISOR_EMAILS_JSON", "err", err)
		return make(map[string]string)
	}
	return res
}

// Присваивает полям в переданной структуре значения переменных. Название переменной для каждого поля лежит в теге этого поля.
func envConfig(key string, s interface{}) {
	v := reflect.ValueOf(s).Elem()
	typeParam := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fName := typeParam.Field(i).Name
		fEnvTag := typeParam.Field(i).Tag.Get(key)

		if fEnvTag == "" || !Exist(fEnvTag) {
			continue
		}

		raw := GetEnv(fEnvTag)
		if raw == "" {
			continue
		}

		slog.Info("Set config value",
			slog.String("key", typeParam.Name()+"."+fName),
			slog.String("value", maskSecret(fName, raw)),
			slog.String("source", "ENVIRONMENT"),
		)

		switch v.Field(i).Interface().(type) {
		case string:
			v.Field(i).SetString(raw)
		case int:
			v.Field(i).SetInt(int64(GetIntEnv(fEnvTag)))
		case bool:
			v.Field(i).SetBool(GetBoolEnv(fEnvTag))
		}
	}
}

func maskSecret(field, value string) string {
	name := strings.ToLower(field)
	if !strings.Contains(name, "pass") && !strings.Contains(name, "secret") &&
		!strings.Contains(name, "token") && !strings.Contains(name, "key") {
		return value
	}
	r := []rune(value)
	if len(r) <= 2 {
		return strings.Repeat("*", len(r))
	}
	return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
}
