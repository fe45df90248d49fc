package classroom

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	classCodeTag  = "classcode"
	classCodeText = "must be 3 letters followed by 3 digits"
)

// InitValidators registers classroom-specific validators.
// It must be called once at application start-up, after core.InitValidators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(classCodeTag, classCodeValidation)
	core.RegisterCustomTranslation(validate, translator, classCodeTag, classCodeText)
}

// classCodeValidation checks that the field is a well-formed join code.
func classCodeValidation(fl validator.FieldLevel) bool {
	if code, ok := fl.Field().Interface().(string); ok {
		return IsValidCode(code)
	}
	return false
}
