package core

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	fr_translations "github.com/go-playground/validator/v10/translations/fr"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "seuls les caractères alphanumériques et les tirets bas sont autorisés"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s-]+$`)

	amountTag  = "amount"
	amountText = "{0} doit être un montant positif"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "ce champ est obligatoire"
)

func init() {
	Validate = validator.New()

	_fr := fr.New()
	uni := ut.New(_fr, _fr)
	Translator, _ = uni.GetTranslator("fr")

	InitValidators(Validate, Translator)
}

// InitValidators registers the french translations and the custom validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = fr_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(amountTag, amountValidation)
	RegisterCustomTranslation(validate, translator, amountTag, amountText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
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

// InvalidValueText is the message for a value whose type the rules cannot check.
const InvalidValueText = "valeur invalide"

// ValidateValue checks a single form value against rules and returns the translated message, if any.
func ValidateValue(value interface{}, rules string) (msg string) {
	if rules == "" {
		return ""
	}
	// some baked-in validators (datetime, oneof) panic on unexpected kinds.
	defer func() {
		if r := recover(); r != nil {
			msg = InvalidValueText
		}
	}()
	err := Validate.Var(value, rules)
	if err == nil {
		return ""
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrs) == 0 {
		return err.Error()
	}
	// Var() has no field name, so translations come out without their subject.
	return strings.TrimSpace(vErrs[0].Translate(Translator))
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// amountValidation accepts positive numbers, whatever their representation (number or numeric string).
func amountValidation(fl validator.FieldLevel) bool {
	fld := fl.Field()
	switch fld.Kind() {
	case reflect.Float32, reflect.Float64:
		return fld.Float() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fld.Int() > 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fld.Uint() > 0
	case reflect.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(fld.String()), 64)
		return err == nil && f > 0
	}
	return false
}
