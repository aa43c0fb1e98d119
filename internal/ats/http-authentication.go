// Аутентификация пользователей бригад: вход по логину и паролю, JWT в cookie и middleware защищенных маршрутов.
//
// Основные возможности:
//   - Вход по usuario/clave с проверкой капчи altcha.
//   - Выдача подписанного HS256 токена сессии в HttpOnly cookie.
//   - Проверка токена из cookie или заголовка Authorization: Bearer.
//   - Передача пользователя сессии обработчикам через AuthContext.
package ats

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/altcha-org/altcha-lib-go"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/cicsa-sst/ats/internal/ats/apierrors"
	"github.com/cicsa-sst/ats/internal/ats/dao"
	"github.com/cicsa-sst/ats/internal/ats/types"
)

const (
	sessionCookieName  = "access_token"
	TokenExpiresPeriod = time.Hour * 12
)

type Authentication struct {
	db      *gorm.DB
	secret  []byte
	captcha *CaptchaSignatures
}

type AuthContext struct {
	echo.Context
	User types.SessionUser
}

type AuthConfig struct {
	Secret  []byte
	DB      *gorm.DB
	Skipper middleware.Skipper
}

func AuthMiddleware(config AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}

			if config.Skipper != nil && config.Skipper(c) {
				return next(c)
			}

			tokenString := ""
			if schema, value, ok := strings.Cut(c.Request().Header.Get("Authorization"), " "); ok && strings.TrimSpace(schema) == "Bearer" {
				tokenString = strings.TrimSpace(value)
			} else if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie != nil {
				tokenString = cookie.Value
			}
			if tokenString == "" {
				return EErrorDefined(c, apierrors.ErrSessionRequired)
			}

			userID, err := parseSessionToken(config.Secret, tokenString)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return EErrorDefined(c, apierrors.ErrTokenExpired)
				}
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}

			user, err := dao.GetActiveUser(config.DB, userID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					clearAuthCookies(c)
					return EErrorDefined(c, apierrors.ErrTokenInvalid)
				}
				return EError(c, err)
			}

			return next(AuthContext{c, user.ToSession()})
		}
	}
}

func AddAuthenticationServices(db *gorm.DB, g *echo.Group, secret []byte, captcha *CaptchaSignatures) *Authentication {
	ret := &Authentication{db, secret, captcha}

	g.POST("login/", ret.login)
	g.GET("logout/", ret.logout)
	g.GET("captcha/", ret.requestCaptcha)
	return ret
}

type LoginRequest struct {
	Login          string `json:"usuario" form:"usuario"`
	Password       string `json:"clave" form:"clave"`
	CaptchaPayload string `json:"captcha" form:"captcha"`
}

// login проверяет учетные данные активного пользователя и устанавливает cookie сессии.
func (a *Authentication) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormParse)
	}

	req.Login = strings.TrimSpace(req.Login)
	req.Password = strings.TrimSpace(req.Password)
	if req.Login == "" || req.Password == "" {
		return EErrorDefined(c, apierrors.ErrLoginCredentialsRequired)
	}

	if !a.captcha.Validate(req.CaptchaPayload) {
		return EErrorDefined(c, apierrors.ErrCaptchaFail)
	}

	user, err := dao.Authenticate(a.db, req.Login, req.Password)
	if err != nil {
		if errors.Is(err, dao.ErrInvalidCredentials) {
			return EErrorDefined(c, apierrors.ErrFailedLogin)
		}
		return EError(c, err)
	}

	token, err := GenJwtToken(a.secret, user.ID.String())
	if err != nil {
		return EError(c, err)
	}
	setAuthCookies(c, token)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"access_token": token,
		"usuario":      user.ToSession(),
	})
}

func (a *Authentication) logout(c echo.Context) error {
	clearAuthCookies(c)
	return c.NoContent(http.StatusOK)
}

func (a *Authentication) requestCaptcha(c echo.Context) error {
	expires := time.Now().Add(AltchaExpires)
	challenge, err := altcha.CreateChallenge(altcha.ChallengeOptions{
		HMACKey:   a.captcha.hmacKey,
		MaxNumber: 10000,
		Expires:   &expires,
		Params:    url.Values{},
	})
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, challenge)
}

// Генерация JWT сессии
func GenJwtToken(secret []byte, userID string) (string, error) {
	u, _ := uuid.NewV4()
	claims := jwt.MapClaims{
		"exp":     jwt.NewNumericDate(time.Now().Add(TokenExpiresPeriod)),
		"iat":     jwt.NewNumericDate(time.Now()),
		"jti":     fmt.Sprintf("%x", u),
		"user_id": userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseSessionToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("token without user_id")
	}
	return userID, nil
}

func setAuthCookies(c echo.Context, token string) {
	accessCookie := new(http.Cookie)
	accessCookie.Name = sessionCookieName
	accessCookie.Value = token
	accessCookie.HttpOnly = true
	accessCookie.Secure = true
	accessCookie.Path = "/"
	accessCookie.SameSite = http.SameSiteLaxMode
	accessCookie.Expires = time.Now().Add(TokenExpiresPeriod)
	c.SetCookie(accessCookie)
}

func clearAuthCookies(c echo.Context) {
	accessCookie := new(http.Cookie)
	accessCookie.Name = sessionCookieName
	accessCookie.Value = ""
	accessCookie.HttpOnly = true
	accessCookie.Secure = true
	accessCookie.Path = "/"
	accessCookie.SameSite = http.SameSiteLaxMode
	accessCookie.MaxAge = -1
	c.SetCookie(accessCookie)
}
