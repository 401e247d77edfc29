package model

// Confidence grades how much an overtime suggestion can be trusted.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// OvertimeDecision is the analyzer's verdict on a long session.
type OvertimeDecision struct {
	Confidence       Confidence
	Justification    []string
	SuggestedHours   float64
	ApprovalRequired bool
}
