package ats

import (
	"regexp"
	"time"

	"github.com/go-playground/validator"

	"github.com/cicsa-sst/ats/internal/ats/types"
)

type RequestValidator struct {
	validator *validator.Validate
}

var clockRegexp = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	if err := v.RegisterValidation("isodate", isoDateValidator); err != nil {
		return nil
	}
	if err := v.RegisterValidation("clock", clockValidator); err != nil {
		return nil
	}
	return &RequestValidator{v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validator.Struct(i); err != nil {
		_, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil
		}
		return err
	}
	return nil
}

// isodate дата формы в формате 2006-01-02
func isoDateValidator(fl validator.FieldLevel) bool {
	_, err := time.Parse(types.DateLayout, fl.Field().String())
	return err == nil
}

// clock время HH:MM
func clockValidator(fl validator.FieldLevel) bool {
	return clockRegexp.MatchString(fl.Field().String())
}
