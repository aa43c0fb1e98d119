// Пакет содержит определения ошибок API сервиса ATS. Каждая ошибка имеет код, статус HTTP и описание на английском и испанском языках.
//
// Основные возможности:
//   - Ошибки авторизации, обработки формы и формирования отчета.
//   - Коды ошибок, соответствующие кодам HTTP статусов.
//   - Функция для форматирования сообщений об ошибках.
package apierrors

import (
	"fmt"
	"net/http"
	"strings"
)

type DefinedError struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"-"`
	Err        string `json:"error"`
	EsErr      string `json:"es_error,omitempty"`
}

func (e DefinedError) Error() string {
	return e.Err
}

var (
	// 1*** - auth errors
	ErrFailedLogin              = DefinedError{Code: 1001, StatusCode: http.StatusUnauthorized, Err: "invalid credentials", EsErr: "Usuario o contraseña incorrectos"}
	ErrCaptchaFail              = DefinedError{Code: 1002, StatusCode: http.StatusUnauthorized, Err: "invalid captcha", EsErr: "Captcha incorrecto"}
	ErrLoginCredentialsRequired = DefinedError{Code: 1003, StatusCode: http.StatusUnauthorized, Err: "both login and password are required", EsErr: "Usuario y contraseña son obligatorios"}
	ErrTokenExpired             = DefinedError{Code: 1101, StatusCode: http.StatusUnauthorized, Err: "token expired", EsErr: "La sesión ha expirado"}
	ErrTokenInvalid             = DefinedError{Code: 1102, StatusCode: http.StatusUnauthorized, Err: "invalid token", EsErr: "Sesión inválida"}
	ErrSessionRequired          = DefinedError{Code: 1103, StatusCode: http.StatusUnauthorized, Err: "session required", EsErr: "Debe iniciar sesión"}

	// 2*** - form errors
	ErrFormParse      = DefinedError{Code: 2001, StatusCode: http.StatusBadRequest, Err: "invalid form data", EsErr: "Datos del formulario inválidos"}
	ErrFormValidation = DefinedError{Code: 2002, StatusCode: http.StatusBadRequest, Err: "form validation failed: %s", EsErr: "Error de validación del formulario: %s"}
	ErrDirectoryLoad  = DefinedError{Code: 2003, StatusCode: http.StatusInternalServerError, Err: "failed to load crew directory", EsErr: "No se pudo cargar la lista de técnicos"}
	ErrUploadTooLarge = DefinedError{Code: 2004, StatusCode: http.StatusRequestEntityTooLarge, Err: "upload too large", EsErr: "El archivo es demasiado grande"}

	// 3*** - report errors
	ErrReportRender = DefinedError{Code: 3001, StatusCode: http.StatusInternalServerError, Err: "failed to generate report", EsErr: "Error generando el reporte ATS"}

	// 9*** - generic errors
	ErrGeneric  = DefinedError{Code: 9001, StatusCode: http.StatusInternalServerError, Err: "internal server error", EsErr: "Error interno del servidor"}
	ErrNotFound = DefinedError{Code: 9002, StatusCode: http.StatusNotFound, Err: "not found", EsErr: "No encontrado"}
)

func (e DefinedError) WithFormattedMessage(args ...interface{}) DefinedError {
	if len(args) > 0 {
		e.Err = fmt.Sprintf(e.Err, args...)
		e.EsErr = fmt.Sprintf(e.EsErr, args...)
	} else {
		e.Err = strings.Replace(e.Err, "%s", "", -1)
		e.EsErr = strings.Replace(e.EsErr, "%s", "", -1)
	}
	return e
}
