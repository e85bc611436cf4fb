package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sefazor/resumeforge-backend/internal/models"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("plan_tier", validatePlanTier)
	v.RegisterValidation("discount_code", validateDiscountCode)

	return &Validator{
		validate: v,
	}
}

func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// FirstField returns the JSON-ish name of the first failing field, or "".
func FirstField(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		f := verrs[0].Field()
		return strings.ToLower(f[:1]) + f[1:]
	}
	return ""
}

// Only paid tiers can be ordered.
func validatePlanTier(fl validator.FieldLevel) bool {
	tier, ok := models.ParsePlanTier(fl.Field().String())
	return ok && tier != models.PlanFree
}

var discountCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

func validateDiscountCode(fl validator.FieldLevel) bool {
	return discountCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
}
