package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(log.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHubStreamsFrames(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	pub := snapshot.NewPublisher()
	done := make(chan error, 1)
	go func() { done <- hub.Consume(context.Background(), pub) }()

	f := &snapshot.Frame{
		Step: 1,
		Domains: []snapshot.DomainFrame{{
			Kind:       dynamo.KindSPH,
			Positions:  []dynamo.Vec3{{0.1, 0.2, 0.3}},
			Velocities: []dynamo.Vec3{{0, 0, -1}},
			Owners:     []dynamo.ID{0},
		}},
		Surfaces: map[dynamo.ID]dynamo.Surface{0: dynamo.DefaultSurface()},
	}
	require.NoError(t, pub.Publish(f))

	m := read(t, conn)
	assert.Equal(t, "frame", m.Type)
	require.NotNil(t, m.Frame)
	assert.Equal(t, uint64(1), m.Frame.Step)
	assert.Equal(t, dynamo.Vec3{0.1, 0.2, 0.3}, m.Frame.Domains[0].Positions[0])
	assert.Equal(t, dynamo.DefaultSurface(), m.Frame.SurfaceOf(0))

	pub.Close()
	m = read(t, conn)
	assert.Equal(t, "stopped", m.Type)
	assert.Nil(t, m.Frame)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not return after the publisher closed")
	}
}

func TestHubDisconnect(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, srv, cancel := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "hub shutdown closes the connection")

	assert.ErrorIs(t, hub.Broadcast(context.Background(), []byte("x")), context.Canceled)
}

func TestOfferKeepsNewest(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}
	c.offer([]byte("a"))
	c.offer([]byte("b"))
	c.offer([]byte("c"))
	assert.Equal(t, []byte("c"), <-c.send)
	assert.Empty(t, c.send)
}

func TestMuxServesLatestFrame(t *testing.T) {
	pub := snapshot.NewPublisher()
	srv := httptest.NewServer(NewMux(NewHub(log.New(io.Discard)), pub))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/frame")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, pub.Publish(&snapshot.Frame{Step: 7}))
	resp, err = http.Get(srv.URL + "/frame")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var f snapshot.Frame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&f))
	assert.Equal(t, uint64(7), f.Step)

	post, err := http.Post(srv.URL+"/frame", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestServeEndsWithPublisher(t *testing.T) {
	pub := snapshot.NewPublisher()
	require.NoError(t, pub.Publish(&snapshot.Frame{}))
	pub.Close()

	done := make(chan error, 1)
	go func() { done <- Serve(context.Background(), "127.0.0.1:0", pub, log.New(io.Discard)) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the publisher closed")
	}

	assert.Error(t, Serve(context.Background(), "bad::addr::", pub, log.New(io.Discard)))
}
