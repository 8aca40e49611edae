package settings

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/infrakit/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report koanf keys instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	// "none" resolves to a signing method but produces unsigned tokens.
	_ = v.RegisterValidation("jwtalg", func(fl validator.FieldLevel) bool {
		alg := fl.Field().String()
		if strings.EqualFold(alg, jwt.SigningMethodNone.Alg()) {
			return false
		}
		return jwt.GetSigningMethod(alg) != nil
	})

	return v
}

// Validate checks shape constraints and returns the first violation as a
// *common.ConfigurationError. The storage bucket is deliberately not
// required here.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	return fromFieldError(verrs[0])
}

func fromFieldError(fe validator.FieldError) *common.ConfigurationError {
	key := fe.Field()
	value := fmt.Sprint(fe.Value())

	ce := &common.ConfigurationError{
		Key:        key,
		Value:      Mask(key, value),
		Present:    !isZero(fe.Value()),
		Suggestion: Suggest(key),
		Err:        common.ErrInvalidValue,
	}

	switch fe.Tag() {
	case "required":
		ce.Err = common.ErrMissingValue
	case "required_with":
		ce.Err = common.ErrMissingValue
		ce.Suggestion = fmt.Sprintf("set both %s and %s, or neither to use ambient credentials",
			KeyAccessKeyID, KeySecretAccessKey)
	case "oneof":
		ce.Err = fmt.Errorf("%w: must be one of %s", common.ErrInvalidValue,
			strings.Join(strings.Fields(fe.Param()), ", "))
	case "gt":
		ce.Err = fmt.Errorf("%w: must be a positive integer", common.ErrInvalidValue)
	case "jwtalg":
		ce.Err = fmt.Errorf("%w: unknown or unsigned signing method", common.ErrInvalidValue)
		ce.Suggestion = fmt.Sprintf("use a JWT signing method such as HS256, HS384 or RS256 (%s)", Suggest(key))
	}

	return ce
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}
