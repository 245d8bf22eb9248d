// Package features defines the fixed-order feature vector consumed by the
// risk model and the recommendation rules.
package features

import (
	"errors"
	"fmt"
	"math"
)

// Count is the number of positions in a feature vector.
const Count = 10

// ErrInvalidInput is returned when a feature vector or raw input is malformed.
var ErrInvalidInput = errors.New("invalid input")

// Field identifies a position in the feature vector.
// The order matches the column order the risk model was trained on and must never change.
type Field int

const (
	FieldBMI Field = iota
	FieldExerciseHoursPerWeek
	FieldSmokingStatus
	FieldAlcoholDrinksPerWeek
	FieldSleepHoursPerDay
	FieldSystolicBP
	FieldTotalCholesterol
	FieldFamilyDiabetesHistory
	FieldFamilyHeartDiseaseHistory
	FieldStressLevel
)

// Fields lists every field in vector order.
var Fields = [Count]Field{
	FieldBMI,
	FieldExerciseHoursPerWeek,
	FieldSmokingStatus,
	FieldAlcoholDrinksPerWeek,
	FieldSleepHoursPerDay,
	FieldSystolicBP,
	FieldTotalCholesterol,
	FieldFamilyDiabetesHistory,
	FieldFamilyHeartDiseaseHistory,
	FieldStressLevel,
}

var fieldKeys = [Count]string{
	"BMI",
	"ExerciseHoursPerWeek",
	"SmokingStatus",
	"AlcoholDrinksPerWeek",
	"SleepHoursPerDay",
	"SystolicBP",
	"TotalCholesterol",
	"FamilyDiabetesHistory",
	"FamilyHeartDiseaseHistory",
	"StressLevel",
}

// Names are the display names of the fields, in vector order.
var Names = [Count]string{
	"BMI",
	"Exercise",
	"Smoking",
	"Alcohol",
	"Sleep",
	"Blood Pressure",
	"Cholesterol",
	"Diabetes History",
	"Heart Disease History",
	"Stress",
}

// Key returns the identifier used for the field in rule expressions.
func (f Field) Key() string {
	if f < 0 || int(f) >= Count {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldKeys[f]
}

// Name returns the display name of the field.
func (f Field) Name() string {
	if f < 0 || int(f) >= Count {
		return "Unknown"
	}
	return Names[f]
}

func (f Field) String() string {
	return f.Key()
}

// Vector is an ordered feature vector in raw units.
// A valid vector has exactly Count finite values.
type Vector []float64

// Validate reports whether the vector has the right arity and only finite values.
func (v Vector) Validate() error {
	if len(v) != Count {
		return fmt.Errorf("%w: feature vector has %d values, want %d", ErrInvalidInput, len(v), Count)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidInput, Fields[i].Key())
		}
	}
	return nil
}

// Get returns the value at field f. It panics if the vector is shorter than Count.
func (v Vector) Get(f Field) float64 {
	return v[f]
}

// Map returns the vector keyed by field key, as consumed by rule expressions.
// Positions beyond the vector's length are omitted.
func (v Vector) Map() map[string]any {
	m := make(map[string]any, Count)
	for i, x := range v {
		if i >= Count {
			break
		}
		m[fieldKeys[i]] = x
	}
	return m
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
