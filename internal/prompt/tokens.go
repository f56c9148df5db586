package prompt

import "github.com/voyantlabs/codectx/internal/models"

// EstimateTokens approximates the token count of a text as ceil(len/4).
// Four characters per token is a workable average for code and prose
// alike; the remote counter refines it when a provider exposes one.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateMessages sums the content estimates of a conversation
func EstimateMessages(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m.Content)
	}
	return total
}
