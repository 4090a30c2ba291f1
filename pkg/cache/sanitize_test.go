package cache

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sanitizeBase struct {
	ID string `json:"id"`
}

type sanitizeDoc struct {
	sanitizeBase
	Score    float64        `json:"score"`
	Updated  time.Time      `json:"updated"`
	Counts   map[int]string `json:"counts"`
	Empty    []string       `json:"empty,omitempty"`
	Skipped  string         `json:"-"`
	Complex  complex128     `json:"complex"`
	Callback func()         `json:"callback"`
	hidden   string
}

func TestMarshalLenient(t *testing.T) {
	t.Run("serializable values are untouched", func(t *testing.T) {
		payload, dropped, err := marshalLenient(map[string]any{"a": 1})
		require.NoError(t, err)
		assert.False(t, dropped)
		assert.JSONEq(t, `{"a":1}`, string(payload))
	})

	t.Run("offending fields become null", func(t *testing.T) {
		doc := &sanitizeDoc{
			sanitizeBase: sanitizeBase{ID: "lakes"},
			Score:        math.NaN(),
			Updated:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			Counts:       map[int]string{7: "seven"},
			Skipped:      "secret",
			Complex:      complex(1, 2),
			Callback:     func() {},
			hidden:       "x",
		}
		payload, dropped, err := marshalLenient(doc)
		require.NoError(t, err)
		assert.True(t, dropped)
		assert.JSONEq(t, `{
			"id": "lakes",
			"score": null,
			"updated": "2024-01-02T03:04:05Z",
			"counts": {"7": "seven"},
			"complex": null,
			"callback": null
		}`, string(payload))
	})

	t.Run("nested slices", func(t *testing.T) {
		payload, dropped, err := marshalLenient([]any{1, make(chan int), []byte("hi")})
		require.NoError(t, err)
		assert.True(t, dropped)
		assert.JSONEq(t, `[1, null, "aGk="]`, string(payload))
	})
}
