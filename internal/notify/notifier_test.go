package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func TestRedisNotifier_Publish(t *testing.T) {
	stream := &fakeStream{}
	n := &RedisNotifier{config: DefaultRedisConfig(), client: stream}

	event := Event{
		Type:   EventTradeClosed,
		Market: "KRW-ETH",
		Detail: map[string]interface{}{"pnl": 1250.0, "reason": "take_profit"},
		At:     time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}
	require.NoError(t, n.Publish(context.Background(), event))

	require.Len(t, stream.args, 1)
	assert.Equal(t, "trader.events", stream.args[0].Stream)
	assert.True(t, stream.args[0].Approx)

	raw, ok := stream.args[0].Values.(map[string]interface{})["event"].(string)
	require.True(t, ok)

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, EventTradeClosed, decoded.Type)
	assert.Equal(t, "KRW-ETH", decoded.Market)
	assert.Equal(t, "take_profit", decoded.Detail["reason"])
	assert.Equal(t, event.At, decoded.At)
}

func TestRedisNotifier_PublishSetsTimestamp(t *testing.T) {
	stream := &fakeStream{}
	n := &RedisNotifier{config: DefaultRedisConfig(), client: stream}

	require.NoError(t, n.Publish(context.Background(), Event{Type: EventSessionStart}))

	raw := stream.args[0].Values.(map[string]interface{})["event"].(string)
	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.False(t, decoded.At.IsZero())
}

func TestRedisNotifier_PublishError(t *testing.T) {
	stream := &fakeStream{err: errors.New("connection refused")}
	n := &RedisNotifier{config: DefaultRedisConfig(), client: stream}

	err := n.Publish(context.Background(), Event{Type: EventRiskHalt, Market: "KRW-XRP"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trader.events")
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	assert.NoError(t, n.Publish(context.Background(), Event{Type: EventTradeOpened}))
	assert.NoError(t, n.Close())
}
