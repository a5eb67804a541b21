package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
)

func relayServer(t *testing.T, frames []string, gotAuth chan<- string, gotSub chan<- frame) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub frame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		gotSub <- sub
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientStreamsMessages(t *testing.T) {
	auth := make(chan string, 1)
	sub := make(chan frame, 1)
	srv := relayServer(t, []string{
		`{"type":"hello"}`,
		`{"type":"message","data":{"source":"vip","message_id":7,"timestamp":"2024-05-01T10:00:00+02:00","text":"BTC long 60000"}}`,
		`not json`,
		`{"type":"batch","data":[{"source":"vip","message_id":8,"text":"a"},{"source":"","message_id":9,"text":"b"}]}`,
	}, auth, sub)

	c := New(Config{
		URL:          "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:        "t0k",
		Channels:     []string{"vip"},
		PingInterval: time.Hour,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "Bearer t0k", <-auth)
	s := <-sub
	assert.Equal(t, "subscribe", s.Type)
	assert.Equal(t, []string{"vip"}, s.Channels)

	msgs, errs := c.Read(ctx)
	var got []*models.RawMessage
	for m := range msgs {
		got = append(got, m)
	}
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].MessageID)
	assert.Equal(t, 8, got[0].Timestamp.Hour())
	assert.Equal(t, int64(8), got[1].MessageID)

	err, ok := <-errs
	assert.True(t, ok)
	assert.Error(t, err)
	assert.False(t, c.IsConnected())
	require.NoError(t, c.Close())
}

func TestDecodeFrameIgnoresUnknownTypes(t *testing.T) {
	msgs, err := decodeFrame([]byte(`{"type":"pong"}`))
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = decodeFrame([]byte(`{"type":"message","data":"oops"}`))
	assert.Error(t, err)
}

func TestSubscribeRequiresConnection(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1"}, nil)
	assert.Error(t, c.Subscribe(context.Background()))
	assert.NoError(t, c.Close())
}
