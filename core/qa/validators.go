package qa

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
)

var (
	relatedTypeTag  = "relatedtype"
	relatedTypeText = "must be one of course, lesson or topic"
)

// InitValidators registers the Q&A validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(relatedTypeTag, relatedTypeValidation)
	core.RegisterCustomTranslation(validate, translator, relatedTypeTag, relatedTypeText)
}

func relatedTypeValidation(fl validator.FieldLevel) bool {
	return content.Type(fl.Field().String()).IsValid()
}
