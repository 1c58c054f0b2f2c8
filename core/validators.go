package core

import (
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const gradeLevelTag = "gradelevel"

// translation texts served to clients; override replaces a default translation.
var translationTexts = []struct {
	tag      string
	text     string
	override bool
}{
	{tag: gradeLevelTag, text: "invalid grade level"},
	{tag: "required", text: "this field is required", override: true},
	{tag: "required_with", text: "this field is required", override: true},
}

// InitValidators wires the shared validator instance: default en translations,
// JSON field names in messages, and the global custom tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// error messages report JSON names, not Go struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(gradeLevelTag, func(fl validator.FieldLevel) bool {
		return GradeLevel(fl.Field().String()).Valid()
	})

	for _, tr := range translationTexts {
		RegisterCustomTranslation(validate, translator, tr.tag, tr.text, tr.override)
	}
}

// RegisterCustomTranslation maps a validation tag to a fixed message text.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}
