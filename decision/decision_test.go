package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrictJSON(t *testing.T) {
	t.Parallel()

	d, err := Parse(`{"action":"BUY","quantity":12.5,"reasoning":"rsi oversold","leverage":10}`)
	require.NoError(t, err)
	assert.Equal(t, Buy, d.Action)
	assert.Equal(t, 12.5, d.Quantity)
	assert.Equal(t, "rsi oversold", d.Reasoning)
	assert.Contains(t, d.Payload, "leverage")
	assert.JSONEq(t, `{"action":"BUY","quantity":12.5,"reasoning":"rsi oversold","leverage":10}`, string(d.Raw))
}

func TestParseExtractsEmbeddedObject(t *testing.T) {
	t.Parallel()

	text := "Here is my decision:\n```json\n{\"action\": \"close_long\", \"quantity\": \"3\", \"reasoning\": \"tp {hit}\"}\n```\nGood luck."
	d, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, CloseLong, d.Action)
	assert.Equal(t, 3.0, d.Quantity)
	assert.Equal(t, "tp {hit}", d.Reasoning)
}

func TestParseHoldWithoutQuantity(t *testing.T) {
	t.Parallel()

	d, err := Parse(`{"action":"HOLD","reasoning":"nothing to do"}`)
	require.NoError(t, err)
	assert.Equal(t, Hold, d.Action)
	assert.Zero(t, d.Quantity)
	assert.False(t, d.Action.Executable())
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"empty", "   "},
		{"prose only", "I would hold for now."},
		{"broken fragment", "answer: {\"action\": \"BUY\", }"},
		{"json null", "null"},
		{"missing action", `{"quantity": 1}`},
		{"numeric action", `{"action": 1}`},
		{"negative quantity", `{"action":"BUY","quantity":-1}`},
		{"bool quantity", `{"action":"BUY","quantity":true}`},
		{"text quantity", `{"action":"BUY","quantity":"lots"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.text)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestUnknownActionIsKeptButNotExecutable(t *testing.T) {
	t.Parallel()

	d, err := Parse(`{"action":"DOUBLE_DOWN","quantity":1}`)
	require.NoError(t, err)
	assert.Equal(t, Action("DOUBLE_DOWN"), d.Action)
	assert.False(t, d.Action.Known())
	assert.False(t, d.Action.Executable())
}

func TestActionClassification(t *testing.T) {
	t.Parallel()

	for _, a := range []Action{Buy, Sell, Close, CloseLong, CloseShort} {
		assert.True(t, a.Executable(), a)
	}
	assert.True(t, Close.IsClose())
	assert.True(t, CloseShort.IsClose())
	assert.False(t, Sell.IsClose())
	assert.False(t, Invalid.Known())
}
