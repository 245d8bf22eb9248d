package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/liamcoop/healthrisk/assessment"
	"github.com/liamcoop/healthrisk/riskmodel"
	"github.com/liamcoop/healthrisk/rules"
)

const barWidth = 30

var (
	colorMuted = lipgloss.Color("#6c757d")
	colorTeal  = lipgloss.Color("#20B9B4")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

const disclaimer = "Disclaimer: This tool provides general health risk assessment and should not be used as a substitute for professional medical advice."

// levelStyle colors text with the display color of a risk level.
func levelStyle(l riskmodel.RiskLevel) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(l.Color()))
}

// bar renders v in [0,1] as a fixed-width bar.
func bar(v float64) string {
	n := int(math.Round(v * barWidth))
	n = max(0, min(barWidth, n))
	return strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
}

func renderResult(w io.Writer, res *assessment.Result) {
	fmt.Fprintln(w, titleStyle.Render("Assessment Results"))
	fmt.Fprintln(w)

	badge := levelStyle(res.RiskLevel).Render(res.Label)
	fmt.Fprintln(w, boxStyle.BorderForeground(lipgloss.Color(res.Color)).Render("Risk Level: "+badge))
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("Risk Probability Distribution"))
	for _, p := range res.Probabilities {
		fmt.Fprintf(w, "  %-12s %s %5.1f%%\n",
			p.Label, levelStyle(p.Level).Render(bar(p.Probability)), p.Probability*100)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("Recommendations"))
	for _, rec := range res.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
	fmt.Fprintln(w)

	renderImportance(w, res.Importance)
	fmt.Fprintln(w)
	fmt.Fprintln(w, mutedStyle.Render(disclaimer))
}

func renderImportance(w io.Writer, factors []assessment.Factor) {
	fmt.Fprintln(w, headerStyle.Render("Risk Factors Analysis"))

	top := 0.0
	for _, f := range factors {
		top = max(top, f.Importance)
	}
	for _, f := range factors {
		scaled := 0.0
		if top > 0 {
			scaled = f.Importance / top
		}
		fmt.Fprintf(w, "  %-22s %s %.3f\n", f.Name, titleStyle.Render(bar(scaled)), f.Importance)
	}
}

func renderRules(w io.Writer, list []*rules.Rule) {
	fmt.Fprintln(w, titleStyle.Render("Recommendation Rules"))
	for _, r := range list {
		state := ""
		if !r.Active {
			state = mutedStyle.Render(" (inactive)")
		}
		fmt.Fprintf(w, "\n  %d. %s [%s]%s\n", r.Position, r.Name, r.ID, state)
		fmt.Fprintf(w, "     when:   %s\n", r.Expression)
		fmt.Fprintf(w, "     advice: %s\n", r.Advice)
	}
	fmt.Fprintf(w, "\n  %s %s\n", mutedStyle.Render("otherwise:"), rules.DefaultAdvice)
}
