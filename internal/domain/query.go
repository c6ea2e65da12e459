package domain

import "time"

// QuestionRequest is the body of an ask-question call.
type QuestionRequest struct {
	Question string `json:"question" form:"question"`
}

// Reference is a citation snippet pointing back into the source document.
type Reference struct {
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
}

// Answer is the payload returned for an answered question. It is also the
// value stored in the response cache, with Cached flipped on a hit.
type Answer struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
	TokensUsed int         `json:"tokens_used"`
	Cached     bool        `json:"cached"`
}

// UsageStats is a point-in-time snapshot of the token ledger.
type UsageStats struct {
	DailyTokens   int       `json:"daily_tokens"`
	MonthlyTokens int       `json:"monthly_tokens"`
	TotalTokens   int64     `json:"total_tokens"`
	LastUpdate    time.Time `json:"last_update"`
}
