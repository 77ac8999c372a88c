package publisher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader_sync/internal/domain"
)

type recorder struct {
	signals []domain.Signal
	err     error
}

func (r *recorder) Notify(_ context.Context, signal domain.Signal) error {
	r.signals = append(r.signals, signal)
	return r.err
}

func TestFanout_DeliversToAll(t *testing.T) {
	first := &recorder{}
	second := &recorder{err: errors.New("broker down")}

	fan := Fanout{first, nil, second}

	err := fan.Notify(context.Background(), domain.NavigateSignal(domain.RouteFeedList))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.Len(t, first.signals, 1)
	require.Len(t, second.signals, 1)
	assert.Equal(t, domain.RouteFeedList, first.signals[0].Route)
}

func TestFanout_Empty(t *testing.T) {
	assert.NoError(t, Fanout(nil).Notify(context.Background(), domain.ErrorSignal("")))
}

func TestLog_WritesSignalFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	n := NewLog(logger)
	require.NoError(t, n.Notify(context.Background(), domain.LoadingSignal(domain.FlagPostsLoading, true)))

	out := buf.String()
	assert.Contains(t, out, `"kind":"loading"`)
	assert.Contains(t, out, `"flag":"posts_loading"`)
	assert.Contains(t, out, `"active":true`)
}
