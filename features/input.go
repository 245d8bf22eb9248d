package features

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Input holds the raw answers collected from the assessment form.
// Ranges mirror the bounds offered by the form widgets.
type Input struct {
	BMI                       float64 `json:"bmi" validate:"gte=15,lte=50"`
	ExerciseHoursPerWeek      float64 `json:"exerciseHoursPerWeek" validate:"gte=0,lte=20"`
	Smoking                   string  `json:"smoking" validate:"required,smoking"`
	AlcoholDrinksPerWeek      float64 `json:"alcoholDrinksPerWeek" validate:"gte=0,lte=50"`
	SleepHoursPerDay          float64 `json:"sleepHoursPerDay" validate:"gte=4,lte=12"`
	SystolicBP                float64 `json:"systolicBP" validate:"gte=90,lte=200"`
	TotalCholesterol          float64 `json:"totalCholesterol" validate:"gte=100,lte=300"`
	FamilyDiabetesHistory     bool    `json:"familyDiabetesHistory"`
	FamilyHeartDiseaseHistory bool    `json:"familyHeartDiseaseHistory"`
	StressLevel               int     `json:"stressLevel" validate:"gte=1,lte=10"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("smoking", func(fl validator.FieldLevel) bool {
		_, err := ParseSmoking(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate range-checks every field of the input.
func (in Input) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "smoking":
		return fmt.Sprintf("%s must be one of Never, Former, Current", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// Vector validates the input and assembles it into a feature vector.
func (in Input) Vector() (Vector, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	smoking, err := ParseSmoking(in.Smoking)
	if err != nil {
		return nil, err
	}

	v := make(Vector, Count)
	v[FieldBMI] = in.BMI
	v[FieldExerciseHoursPerWeek] = in.ExerciseHoursPerWeek
	v[FieldSmokingStatus] = float64(smoking)
	v[FieldAlcoholDrinksPerWeek] = in.AlcoholDrinksPerWeek
	v[FieldSleepHoursPerDay] = in.SleepHoursPerDay
	v[FieldSystolicBP] = in.SystolicBP
	v[FieldTotalCholesterol] = in.TotalCholesterol
	v[FieldFamilyDiabetesHistory] = boolToFloat(in.FamilyDiabetesHistory)
	v[FieldFamilyHeartDiseaseHistory] = boolToFloat(in.FamilyHeartDiseaseHistory)
	v[FieldStressLevel] = float64(in.StressLevel)

	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}
