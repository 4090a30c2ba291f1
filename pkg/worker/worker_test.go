package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	taskUpper = "test.upper"
	taskFail  = "test.fail"
	taskChan  = "test.chan"
)

var errBadInput = errors.New("bad input")

type upperParams struct {
	Text string `json:"text"`
}

func newTestRegistry() *Registry {
	reg := NewRegistry()
	reg.HandleFunc(taskUpper, func(_ context.Context, params json.RawMessage) (any, error) {
		var p upperParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		out := []rune(p.Text)
		for i, r := range out {
			if r >= 'a' && r <= 'z' {
				out[i] = r - 'a' + 'A'
			}
		}
		return string(out), nil
	})
	reg.HandleFunc(taskFail, func(context.Context, json.RawMessage) (any, error) {
		return nil, fmt.Errorf("parse: %w", errBadInput)
	})
	reg.HandleFunc(taskChan, func(context.Context, json.RawMessage) (any, error) {
		return make(chan int), nil
	})
	return reg
}

func runners(t *testing.T) map[string]Runner {
	t.Helper()
	reg := newTestRegistry()
	pool := NewPoolRunner(reg, 3)
	t.Cleanup(func() { pool.Close() })
	return map[string]Runner{
		"inline": NewInlineRunner(reg),
		"pool":   pool,
	}
}

func TestRunners(t *testing.T) {
	ctx := context.Background()
	for name, r := range runners(t) {
		t.Run(name, func(t *testing.T) {
			got, err := Call[string](ctx, r, taskUpper, upperParams{Text: "wms"})
			require.NoError(t, err)
			assert.Equal(t, "WMS", got)

			_, err = Call[string](ctx, r, taskFail, nil)
			assert.ErrorIs(t, err, errBadInput)

			_, err = Call[string](ctx, r, "missing", nil)
			assert.ErrorIs(t, err, ErrUnknownTask)

			_, err = Call[string](ctx, r, taskChan, nil)
			assert.Error(t, err)
		})
	}
}

func TestRun_ResponseEnvelope(t *testing.T) {
	r := NewInlineRunner(newTestRegistry())

	req, err := NewRequest(taskFail, nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, req.ID)

	resp, err := r.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req.ID, resp.ID)
	assert.Equal(t, taskFail, resp.TaskName)
	assert.Equal(t, "parse: bad input", resp.Error)
	assert.Empty(t, resp.Response)

	// Once serialized, only the message survives.
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))
	var taskErr *TaskError
	require.ErrorAs(t, decoded.Err(), &taskErr)
	assert.Equal(t, taskFail, taskErr.TaskName)
	assert.Equal(t, "parse: bad input", taskErr.Message)
}

func TestPoolRunner_Concurrent(t *testing.T) {
	pool := NewPoolRunner(newTestRegistry(), 4)
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := Call[string](context.Background(), pool, taskUpper, upperParams{Text: fmt.Sprintf("layer%d", i)})
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("LAYER%d", i), got)
		}(i)
	}
	wg.Wait()
}

func TestPoolRunner_Close(t *testing.T) {
	pool := NewPoolRunner(newTestRegistry(), 1)
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	_, err := Call[string](context.Background(), pool, taskUpper, upperParams{Text: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRunners_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, r := range runners(t) {
		t.Run(name, func(t *testing.T) {
			_, err := r.Run(ctx, Request{ID: uuid.New(), TaskName: taskUpper})
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
