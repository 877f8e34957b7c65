package listener

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albapepper/eventcentral/internal/session"
)

type recorder struct {
	started, stopped []string
	stopAll          int
	startErr         error
}

func (r *recorder) Start(id string) (*session.StartResult, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.started = append(r.started, id)
	return &session.StartResult{EventID: id, RunID: "run"}, nil
}

func (r *recorder) Stop(id string) []string {
	r.stopped = append(r.stopped, id)
	return []string{id}
}

func (r *recorder) StopAll() []string {
	r.stopAll++
	return nil
}

func TestHandle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := &recorder{}

	assert.NoError(t, Handle(r, `{"action":"start","eventId":" presidents-day "}`, logger))
	assert.NoError(t, Handle(r, `{"action":"STOP","eventId":"presidents-day"}`, logger))
	assert.NoError(t, Handle(r, `{"action":"stop"}`, logger))

	assert.Equal(t, []string{"presidents-day"}, r.started)
	assert.Equal(t, []string{"presidents-day"}, r.stopped)
	assert.Equal(t, 1, r.stopAll)

	assert.Error(t, Handle(r, `not json`, logger))
	assert.Error(t, Handle(r, `{"action":"start"}`, logger))
	assert.Error(t, Handle(r, `{"action":"restart","eventId":"x"}`, logger))

	r.startErr = session.ErrAlreadyRunning
	assert.ErrorIs(t, Handle(r, `{"action":"start","eventId":"x"}`, logger), session.ErrAlreadyRunning)
}
