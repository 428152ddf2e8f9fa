package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Reading is one health measurement as the client sent it. It accepts a JSON
// number or string and keeps the text verbatim; no range checks.
type Reading string

func (r *Reading) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Reading(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("reading must be a number or string: %w", err)
	}
	*r = Reading(n.String())
	return nil
}

func (r Reading) Present() bool {
	return strings.TrimSpace(string(r)) != ""
}

// HealthMetrics is the single-turn prediction input.
type HealthMetrics struct {
	Age           Reading `json:"age"`
	Weight        Reading `json:"weight"`
	BloodPressure Reading `json:"bp"`
	HeartRate     Reading `json:"heartRate"`
}

// Missing lists the wire names of absent readings.
func (m HealthMetrics) Missing() []string {
	var out []string
	if !m.Age.Present() {
		out = append(out, "age")
	}
	if !m.Weight.Present() {
		out = append(out, "weight")
	}
	if !m.BloodPressure.Present() {
		out = append(out, "bp")
	}
	if !m.HeartRate.Present() {
		out = append(out, "heartRate")
	}
	return out
}

type RiskAssessment struct {
	DiabetesRisk     string `json:"diabetes_risk"`
	HypertensionRisk string `json:"hypertension_risk"`
	Advice           string `json:"advice"`
}

const predictSystemPrompt = "You are a medical AI assistant providing structured health predictions."

func predictPrompt(m HealthMetrics, adviceLanguage string) string {
	return fmt.Sprintf(`Based on the user's health data:
- Age: %s
- Weight: %skg
- Blood Pressure: %s
- Heart Rate: %s

Predict the likelihood of developing diabetes and hypertension as a percentage.
Also, provide advice on how to prevent or manage these diseases in %s.

Respond **only** in JSON format with this structure:
{
  "diabetes_risk": "percentage",
  "hypertension_risk": "percentage",
  "advice": "string"
}`, m.Age, m.Weight, m.BloodPressure, m.HeartRate, adviceLanguage)
}

var (
	leadingFence  = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\r?\n?[ \t]*```$")
)

// StripCodeFence removes a surrounding Markdown code fence, with or without a
// language tag. Text without a fence comes back trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseRiskAssessment decodes a model reply into a RiskAssessment. All three
// fields must be present strings.
func ParseRiskAssessment(raw string) (RiskAssessment, error) {
	var wire struct {
		DiabetesRisk     *string `json:"diabetes_risk"`
		HypertensionRisk *string `json:"hypertension_risk"`
		Advice           *string `json:"advice"`
	}
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &wire); err != nil {
		return RiskAssessment{}, &MalformedReplyError{Raw: raw, Err: err}
	}
	if wire.DiabetesRisk == nil || wire.HypertensionRisk == nil || wire.Advice == nil {
		return RiskAssessment{}, &MalformedReplyError{Raw: raw, Err: errors.New("missing field")}
	}
	return RiskAssessment{
		DiabetesRisk:     *wire.DiabetesRisk,
		HypertensionRisk: *wire.HypertensionRisk,
		Advice:           *wire.Advice,
	}, nil
}
