/**
 * @description
 * Read-only view models for calls placed by the voice platform. Nothing here is
 * persisted; records are fetched live and rendered by the dashboard.
 */
package domain

// Call statuses reported by the voice platform.
const (
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
	CallStatusInProgress = "in-progress"
	CallStatusQueued     = "queued"
)

// CallCustomer is the contact a call was placed to.
type CallCustomer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

// VoiceCallRecord is a single call as returned by the voice API.
type VoiceCallRecord struct {
	ID          string        `json:"id"`
	AssistantID string        `json:"assistantId"`
	Customer    *CallCustomer `json:"customer,omitempty"`
	Status      string        `json:"status"`
	StartedAt   string        `json:"startedAt"`
	EndedAt     string        `json:"endedAt,omitempty"`
	Duration    float64       `json:"duration,omitempty"`
	Cost        float64       `json:"cost,omitempty"`
	Transcript  string        `json:"transcript,omitempty"`
}

// DailyCalls is one bucket of the seven day histogram.
type DailyCalls struct {
	Date      string `json:"date"`
	Calls     int    `json:"calls"`
	Recovered int    `json:"recovered"`
}

// CallStats aggregates a list of calls for the analytics panel.
type CallStats struct {
	TotalCalls      int          `json:"totalCalls"`
	SuccessRate     float64      `json:"successRate"`
	TotalCost       float64      `json:"totalCost"`
	AverageDuration int          `json:"averageDuration"`
	CallsLast7Days  []DailyCalls `json:"callsLast7Days"`
}

// CallList is the API response for the call log; Source is "live" or "mock".
type CallList struct {
	Calls  []VoiceCallRecord `json:"calls"`
	Source string            `json:"source"`
}
