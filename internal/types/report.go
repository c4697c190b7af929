package types

import "time"

// UnknownService is the bucket for transactions without a selected service
const UnknownService = "unknown"

// ServiceAverage is the rounded mean after-call work of one service
type ServiceAverage struct {
	Service        string `json:"service"`
	AverageSeconds int64  `json:"averageSeconds"`
	Slots          int    `json:"slots"`
}

// Report is the result of one run over a record set
type Report struct {
	RunID       string           `json:"runId"`
	GeneratedAt time.Time        `json:"generatedAt"`
	RecordCount int              `json:"recordCount"`
	Averages    map[string]int64 `json:"averages"`
	Services    []ServiceAverage `json:"services"`
	Slots       DailySlots       `json:"-"`
}

// Widget is pushed to dashboard clients over the websocket
type Widget struct {
	Type      string    `json:"type"` // "acw_overview"
	Timestamp time.Time `json:"timestamp"`
	Report    *Report   `json:"report"`
}

// WidgetTypeACWOverview is the widget type for report pushes
const WidgetTypeACWOverview = "acw_overview"
