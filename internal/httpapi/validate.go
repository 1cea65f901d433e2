package httpapi

import (
	validator "gopkg.in/go-playground/validator.v9"

	"github.com/kohakuhub/hub/internal/apperr"
)

var structValidator = validator.New()

// ValidateStruct runs the struct-tag validator the teacher's withBody.go
// uses, translated to this module's apperr.ValidationError instead of a
// ValidationKnownFieldsError JSON body — the hub's error contract is
// headers-only (spec §7).
func ValidateStruct(s any) error {
	if err := structValidator.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				return apperr.NewValidation("BadRequest", fe.Field()+" failed "+fe.Tag())
			}
		}

		return apperr.NewValidation("BadRequest", err.Error())
	}

	return nil
}
