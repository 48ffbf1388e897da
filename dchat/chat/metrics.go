package chat

import (
	internal "github.com/ZanzyTHEbar/docuchat/dchat"
)

// Stats is a point-in-time snapshot of history load for the metrics panel.
type Stats struct {
	Messages        int `json:"messages"`
	MaxMessages     int `json:"max_messages"`
	EstimatedTokens int `json:"estimated_tokens"`
	TokenWarnLimit  int `json:"token_warn_limit"`
}

// MessageLoad is the message count as a fraction of the configured limit.
func (s Stats) MessageLoad() float64 {
	if s.MaxMessages <= 0 {
		return 0
	}
	return float64(s.Messages) / float64(s.MaxMessages)
}

// TokenLoad is the estimated token count as a fraction of the warn limit.
func (s Stats) TokenLoad() float64 {
	if s.TokenWarnLimit <= 0 {
		return 0
	}
	return float64(s.EstimatedTokens) / float64(s.TokenWarnLimit)
}

// Warning reports whether either load crossed the warning fraction. Purely
// advisory: the UI restyles the metrics panel, nothing else changes.
func (s Stats) Warning() bool {
	return s.MessageLoad() > internal.WarnFraction || s.TokenLoad() > internal.WarnFraction
}
