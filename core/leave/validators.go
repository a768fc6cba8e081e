package leave

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

var (
	dateRangeTag  = "daterange"
	dateRangeText = "end_date cannot be before start_date"

	decisionTag  = "decision"
	decisionText = "decision must be one of APPROVE or REJECT"

	notLinkedText = "student is not linked to this guardian"
)

// InitValidators registers the leave validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newRequestStructValidation, NewRequest{})
	core.RegisterCustomTranslation(validate, translator, dateRangeTag, dateRangeText)

	_ = validate.RegisterValidation(decisionTag, decisionValidation)
	core.RegisterCustomTranslation(validate, translator, decisionTag, decisionText)
}

// newRequestStructValidation checks that the requested range is not inverted.
func newRequestStructValidation(sl validator.StructLevel) {
	nr, ok := sl.Current().Interface().(NewRequest)
	if !ok || nr.StartDate.IsZero() || nr.EndDate.IsZero() {
		return
	}
	if nr.EndDate.Before(nr.StartDate) {
		sl.ReportError(nr.EndDate, "end_date", "EndDate", dateRangeTag, "")
	}
}

func decisionValidation(fl validator.FieldLevel) bool {
	_, ok := Decision(fl.Field().String()).Status()
	return ok
}
