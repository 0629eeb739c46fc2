package models

// Requests for the options-analytics HTTP endpoints. Defined in domain for
// consistency and reuse.

type SentimentRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,min=1,max=10"`
	Date   string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Mode   string `query:"mode" json:"mode" default:"auto" validate:"oneof=auto eod"`
}

type ExpirationsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,min=1,max=10"`
}

type QuoteRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,min=1,max=10"`
}

type ForecastRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=50,dive,min=1,max=10"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,min=1,max=10"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}
