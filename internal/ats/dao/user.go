package dao

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"
)

const passwordIterations = 260000

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticate ищет активного пользователя по логину и проверяет пароль.
// Для неизвестного логина, неактивного пользователя и неверного пароля возвращается ErrInvalidCredentials.
func Authenticate(db *gorm.DB, login string, pass string) (*BrigadeUser, error) {
	login = strings.TrimSpace(login)
	pass = strings.TrimSpace(pass)
	if login == "" || pass == "" {
		return nil, ErrInvalidCredentials
	}

	var user BrigadeUser
	if err := db.Where("usuario = ?", login).Where("activo = ?", true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find brigade user: %w", err)
	}

	if !CheckPassword(pass, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetActiveUser пользователь сессии по id. Неактивный пользователь не находится.
func GetActiveUser(db *gorm.DB, id string) (*BrigadeUser, error) {
	var user BrigadeUser
	if err := db.Where("id = ?", id).Where("activo = ?", true).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ActiveTechnicians возвращает активных пользователей бригад, отсортированных по имени.
func ActiveTechnicians(db *gorm.DB) ([]BrigadeUser, error) {
	var users []BrigadeUser
	if err := db.Where("activo = ?", true).Order("nombre").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list active technicians: %w", err)
	}
	return users, nil
}

func CreateBrigadeUser(db *gorm.DB, user *BrigadeUser) error {
	user.Login = strings.TrimSpace(user.Login)
	if user.Login == "" {
		return errors.New("login is required")
	}
	return db.Create(user).Error
}

func GenPassword() string {
	return password.MustGenerate(12, 6, 0, false, false)
}

// Генерация хэша пароля для базы
func GenPasswordHash(password string) string {
	letters := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	salt := make([]rune, 32)
	for i := range salt {
		nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		salt[i] = letters[nBig.Int64()]
	}

	return fmt.Sprintf("pbkdf2_sha256$%d$%s$%s",
		passwordIterations,
		string(salt),
		base64.StdEncoding.EncodeToString(pbkdf2.Key([]byte(password), []byte(string(salt)), passwordIterations, 32, sha256.New)),
	)
}

// CheckPassword сравнивает пароль с сохраненным значением.
// Значение вида pbkdf2_sha256$iter$salt$hash проверяется через pbkdf2, иначе считается открытым текстом.
func CheckPassword(password string, stored string) bool {
	if strings.HasPrefix(stored, "pbkdf2_sha256$") {
		ss := strings.Split(stored, "$")
		if len(ss) != 4 {
			return false
		}
		iter, err := strconv.Atoi(ss[1])
		if err != nil || iter <= 0 {
			return false
		}
		hash := base64.StdEncoding.EncodeToString(pbkdf2.Key([]byte(password), []byte(ss[2]), iter, 32, sha256.New))
		return subtle.ConstantTimeCompare([]byte(hash), []byte(ss[3])) == 1
	}
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
}
