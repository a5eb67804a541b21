package models

// Requests for the HTTP API. Times are ISO-8601 strings parsed by the handler.

type ParseSignalRequest struct {
	Source       string `json:"source" validate:"required"`
	ChannelTitle string `json:"channel_title"`
	MessageID    int64  `json:"message_id"`
	Timestamp    string `json:"timestamp"`
	Text         string `json:"text" validate:"required,max=8000"`
	UseAI        *bool  `json:"use_ai" default:"true"`
}

type SimulateRequest struct {
	Signal   CanonicalSignal `json:"signal"`
	Bars     []Bar           `json:"bars"`
	TieBreak string          `json:"tie_break" validate:"omitempty,oneof=stop_first target_first"`
}

type BacktestRunRequest struct {
	From    string `json:"from" validate:"required"`
	To      string `json:"to" validate:"required"`
	Channel string `json:"channel"`
	Limit   int    `json:"limit" default:"1000" validate:"gte=1,lte=50000"`
	Persist *bool  `json:"persist" default:"true"`
}

type StatsRequest struct {
	From    string `query:"from" json:"from"`
	To      string `query:"to" json:"to"`
	Channel string `query:"channel" json:"channel"`
	Top     int    `query:"top" json:"top" default:"10" validate:"gte=1,lte=500"`
}
