package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/healthrisk/assessment"
	"github.com/liamcoop/healthrisk/rules"
)

var smallModel = []string{"--trees", "5", "--samples", "200"}

func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestAssessCommand(t *testing.T) {
	args := append([]string{"assess",
		"--bmi", "35", "--exercise", "1", "--smoking", "Current", "--alcohol", "20",
	}, smallModel...)

	out, _, code := execute(t, args...)
	require.Equal(t, 0, code)

	assert.Contains(t, out, "Assessment Results")
	assert.Contains(t, out, "Risk Probability Distribution")
	assert.Contains(t, out, "Consider consulting with a nutritionist for weight management advice.")
	assert.Contains(t, out, "Consider smoking cessation programs")
	assert.Contains(t, out, "Risk Factors Analysis")
	assert.Contains(t, out, "Disclaimer")

	nutrition := strings.Index(out, "nutritionist")
	alcohol := strings.Index(out, "reducing alcohol")
	assert.Less(t, nutrition, alcohol, "recommendations must keep rule order")
}

func TestAssessCommandJSON(t *testing.T) {
	args := append([]string{"assess", "--json"}, smallModel...)

	out, _, code := execute(t, args...)
	require.Equal(t, 0, code)

	var res assessment.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.RiskLevel.Valid())
	assert.Len(t, res.Probabilities, 3)
	assert.Len(t, res.Importance, 10)
	assert.NotEmpty(t, res.Recommendations)
	assert.Equal(t, []float64{25, 3, 0, 2, 7, 120, 180, 0, 0, 5}, []float64(res.Features))
}

func TestAssessCommandInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bmi too high", []string{"--bmi", "80"}, "BMI"},
		{"unknown smoking status", []string{"--smoking", "Sometimes"}, "Smoking"},
		{"stress too low", []string{"--stress", "0"}, "StressLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(append([]string{"assess"}, tt.args...), smallModel...)
			_, stderr, code := execute(t, args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestImportanceCommand(t *testing.T) {
	args := append([]string{"importance", "--json"}, smallModel...)

	out, _, code := execute(t, args...)
	require.Equal(t, 0, code)

	var factors []assessment.Factor
	require.NoError(t, json.Unmarshal([]byte(out), &factors))
	require.Len(t, factors, 10)
	assert.Equal(t, "Blood Pressure", factors[5].Name)

	var sum float64
	for _, f := range factors {
		sum += f.Importance
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestRulesCommand(t *testing.T) {
	out, _, code := execute(t, "rules")
	require.Equal(t, 0, code)

	for _, id := range []string{"nutrition", "exercise", "smoking-cessation", "alcohol", "checkup"} {
		assert.Contains(t, out, "["+id+"]")
	}
	assert.Contains(t, out, rules.DefaultAdvice)
}

func TestRulesCommandFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.yaml")
	require.NoError(t, os.WriteFile(valid, []byte(`rules:
  - id: sleep
    name: Sleep
    expression: Features.SleepHoursPerDay < 6.0
    advice: Aim for seven to nine hours of sleep.
    position: 1
    active: true
`), 0o600))

	out, _, code := execute(t, "rules", "--file", valid)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "[sleep]")
	assert.NotContains(t, out, "[nutrition]")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte(`rules:
  - id: broken
    name: Broken
    expression: Features.BMI +
    advice: x
    position: 1
    active: true
`), 0o600))

	_, stderr, code := execute(t, "rules", "-f", broken)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "broken")

	_, _, code = execute(t, "rules", "-f", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, 1, code)
}

func TestBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", barWidth), bar(0))
	assert.Equal(t, strings.Repeat("█", barWidth), bar(1))
	assert.Equal(t, strings.Repeat("█", barWidth), bar(1.5))
	assert.Equal(t, strings.Repeat("░", barWidth), bar(-0.2))
	assert.Equal(t, 15, strings.Count(bar(0.5), "█"))
}
