package riskmodel

import "fmt"

// ClassCount is the number of risk classes.
const ClassCount = 3

// RiskLevel is the ordinal output of the classifier.
type RiskLevel int

const (
	Low RiskLevel = iota
	Medium
	High
)

// Probabilities holds per-class probabilities aligned to Low, Medium, High.
type Probabilities [ClassCount]float64

// Valid reports whether the level is one of the known classes.
func (l RiskLevel) Valid() bool {
	return l >= Low && l <= High
}

// Label returns the human-readable label of the level.
func (l RiskLevel) Label() string {
	switch l {
	case Low:
		return "Low Risk"
	case Medium:
		return "Medium Risk"
	case High:
		return "High Risk"
	default:
		return "Unknown"
	}
}

// Color returns the display color of the level as a hex string.
func (l RiskLevel) Color() string {
	switch l {
	case Low:
		return "#28a745"
	case Medium:
		return "#ffc107"
	case High:
		return "#dc3545"
	default:
		return "#6c757d"
	}
}

func (l RiskLevel) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
}
