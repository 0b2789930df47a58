package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSON(t *testing.T) {
	got, err := ParseJSON[payload](`{"name": "tension", "count": 3}`)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "tension", Count: 3}, got)
}

func TestParseJSONWithFences(t *testing.T) {
	response := "Here is the result:\n```json\n{\"name\": \"gap\", \"count\": 1}\n```\nLet me know if you need more."
	got, err := ParseJSON[payload](response)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "gap", Count: 1}, got)
}

func TestParseJSONNoObject(t *testing.T) {
	_, err := ParseJSON[payload]("the model refused to answer")
	assert.Error(t, err)
}

func TestParseJSONMalformed(t *testing.T) {
	_, err := ParseJSON[payload](`{"name": "broken", "count": }`)
	assert.Error(t, err)
}
