package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voyantlabs/codectx/internal/models"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		{strings.Repeat("x", 401), 101},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EstimateTokens(tc.text), "len %d", len(tc.text))
	}
}

func TestEstimateMessages(t *testing.T) {
	messages := []models.Message{
		{Role: "system", Content: "abcd"},
		{Role: "user", Content: "abcde"},
		{Role: "user", Content: ""},
	}
	assert.Equal(t, 3, EstimateMessages(messages))
}
