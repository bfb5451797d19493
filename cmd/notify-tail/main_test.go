package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studytrack/notifyd/internal/realtime"
	"github.com/studytrack/notifyd/internal/session"
)

func TestParseOptionsRequiresTokenAndUser(t *testing.T) {
	t.Setenv("NOTIFYD_TOKEN", "")
	t.Setenv("NOTIFYD_USER_ID", "")

	_, err := parseOptions(nil)
	require.Error(t, err)

	_, err = parseOptions([]string{"-token", "abc"})
	require.Error(t, err)

	opts, err := parseOptions([]string{"-token", "abc", "-user", "u-1", "-url", "ws://example.test/api/realtime"})
	require.NoError(t, err)
	require.Equal(t, "ws://example.test/api/realtime", opts.endpoint)
	require.Equal(t, "u-1", opts.userID)
}

func TestParseOptionsReadsEnvironment(t *testing.T) {
	t.Setenv("NOTIFYD_TOKEN", "env-token")
	t.Setenv("NOTIFYD_USER_ID", "env-user")
	t.Setenv("NOTIFYD_REALTIME_URL", "ws://env.test/api/realtime")

	opts, err := parseOptions(nil)
	require.NoError(t, err)
	require.Equal(t, "env-token", opts.token)
	require.Equal(t, "env-user", opts.userID)
	require.Equal(t, "ws://env.test/api/realtime", opts.endpoint)
}

func TestPrintStateReportsUnreadBadge(t *testing.T) {
	hub := realtime.NewHub()
	sub := hub.Subscribe("u-1", realtime.StreamNotifications)

	sess, err := session.New("u-1", sub, session.Options{UnreadCount: 3})
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	var out bytes.Buffer
	printState(&out, realtime.EventNotificationReadAll, sess)
	require.Contains(t, out.String(), "notification.read_all unread=3")

	out.Reset()
	printState(&out, realtime.EventNotificationCreated, nil)
	require.Empty(t, out.String())
}

func TestKeepAliveStopsBeforeClientClose(t *testing.T) {
	hub := realtime.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve("u-1", nil, w, r)
	}))
	defer srv.Close()

	client, err := realtime.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), "token")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(ctx, client, zap.NewNop())
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive did not return after cancel")
	}
	client.Close()
	require.ErrorIs(t, client.Ping(), realtime.ErrClientClosed)
}
