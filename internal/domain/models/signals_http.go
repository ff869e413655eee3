package models

// Requests for the signals HTTP endpoints. Defined in domain for consistency and reuse.

type ListSignalsRequest struct {
	Status string `query:"status" json:"status" validate:"omitempty,oneof=ACTIVE COMPLETED CANCELLED"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type GetSignalRequest struct {
	ID string `param:"id" json:"id" validate:"required,uuid"`
}

type EvaluateRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Bars   int    `query:"bars" json:"bars" default:"250" validate:"gte=30,lte=2000"`
}

type RefillRequest struct {
	Count int `json:"count" default:"1" validate:"gte=1,lte=100"`
}

// EvaluateResponse is a scored candidate that was not persisted.
type EvaluateResponse struct {
	Signal    *Signal        `json:"signal,omitempty"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Bars      int            `json:"bars"`
	Reason    string         `json:"reason,omitempty"`
}
