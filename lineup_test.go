/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/lineup/lineup"
)

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *LineupManager) {
	t.Helper()

	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.title == "" {
		cfg.title = "Test Lineup"
	}

	errs := make(chan error, 64)
	mux, lm := newRouter(cfg, lineup.DefaultCatalog(), lineup.NewMemoryStorage(), errs)
	t.Cleanup(lm.stop)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, lm
}

func noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postJSON(t *testing.T, url string, body any) (*http.Response, StateMessage) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var state StateMessage
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	}
	return resp, state
}

func occupant(state StateMessage, position string) string {
	for _, p := range state.Positions {
		if p.ID == position {
			return p.Player
		}
	}
	return ""
}

func available(state StateMessage, player string) bool {
	for _, p := range state.Available {
		if string(p.Name) == player {
			return true
		}
	}
	return false
}

func TestHomeRedirectsToLineup(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := noRedirect().Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/lineup", resp.Header.Get("Location"))
}

func TestLineupRedirectRemembersCookie(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirect()

	resp, err := client.Get(srv.URL + "/lineup")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/lineup/"))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == lineupCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, strings.TrimPrefix(location, "/lineup/"), cookie.Value)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/lineup", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, location, resp.Header.Get("Location"))

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/lineup?new", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, location, resp.Header.Get("Location"))
}

func TestLineupPage(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/lineup/abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "app.js")
}

func TestInvalidLineupID(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/lineup/not.valid/state")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStateStartsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/lineup/fresh/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var state StateMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))

	assert.Equal(t, "state", state.Type)
	assert.Equal(t, "fresh", state.ID)
	assert.Equal(t, "Test Lineup", state.Title)
	assert.Len(t, state.Positions, 11)
	assert.Len(t, state.Available, 41)
	for _, p := range state.Positions {
		assert.Empty(t, p.Player)
	}
}

func TestAssignSwapAndClear(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	base := srv.URL + "/lineup/swap"

	resp, state := postJSON(t, base+"/assign", ClientMessage{Position: "ST", Player: "Vegetti"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Vegetti", occupant(state, "ST"))
	assert.False(t, available(state, "Vegetti"))

	resp, state = postJSON(t, base+"/assign", ClientMessage{Position: "GL", Player: "Léo Jardim"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, state = postJSON(t, base+"/assign", ClientMessage{Position: "GL", Player: "Vegetti"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Vegetti", occupant(state, "GL"))
	assert.Equal(t, "Léo Jardim", occupant(state, "ST"))

	resp, state = postJSON(t, base+"/assign", ClientMessage{Position: "GL"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, occupant(state, "GL"))
	assert.True(t, available(state, "Vegetti"))
}

func TestAssignRejectsUnknownIDs(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	base := srv.URL + "/lineup/unknown"

	resp, _ := postJSON(t, base+"/assign", ClientMessage{Position: "XX", Player: "Vegetti"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, base+"/assign", ClientMessage{Position: "ST", Player: "Pelé"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	r, err := http.Post(base+"/assign", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestReleaseAndReset(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	base := srv.URL + "/lineup/release"

	postJSON(t, base+"/assign", ClientMessage{Position: "ST", Player: "Vegetti"})
	postJSON(t, base+"/assign", ClientMessage{Position: "CM", Player: "Payet"})

	resp, state := postJSON(t, base+"/release", ClientMessage{Player: "Vegetti"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, occupant(state, "ST"))
	assert.Equal(t, "Payet", occupant(state, "CM"))

	r, err := http.Post(base+"/reset", "application/json", nil)
	require.NoError(t, err)
	defer r.Body.Close()
	require.Equal(t, http.StatusOK, r.StatusCode)

	require.NoError(t, json.NewDecoder(r.Body).Decode(&state))
	assert.Empty(t, occupant(state, "CM"))
	assert.Len(t, state.Available, 41)
}

func TestLineupSurvivesUnload(t *testing.T) {
	srv, lm := newTestServer(t, nil)
	base := srv.URL + "/lineup/reaped"

	postJSON(t, base+"/assign", ClientMessage{Position: "ST", Player: "Vegetti"})

	lm.reap(time.Now().Add(time.Hour))

	lm.mu.Lock()
	assert.Empty(t, lm.hubs)
	lm.mu.Unlock()

	resp, err := http.Get(base + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var state StateMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "Vegetti", occupant(state, "ST"))
}

func newTestHub(t *testing.T, storage lineup.Storage) *Hub {
	t.Helper()

	store, err := lineup.Open(context.Background(), lineup.DefaultCatalog(), storage, "hub", nil)
	require.NoError(t, err)

	return newHub(&Config{}, store, newMetrics())
}

func TestHubRejectsMovesAfterStop(t *testing.T) {
	for range 50 {
		storage := lineup.NewMemoryStorage()
		hub := newTestHub(t, storage)
		hub.stop()

		exited := make(chan struct{})
		go func() {
			hub.run(&Config{})
			close(exited)
		}()

		reply := make(chan moveResult, 1)
		select {
		case hub.moves <- moveRequest{msg: ClientMessage{Type: "assign", Position: "ST", Player: "Vegetti"}, reply: reply}:
			res := <-reply
			assert.ErrorIs(t, res.err, errLineupClosed)
		case <-exited:
		}
		<-exited

		_, err := storage.Load(context.Background(), "hub")
		assert.ErrorIs(t, err, lineup.ErrNoLineup)
	}
}

func TestHubTryRetire(t *testing.T) {
	hub := newTestHub(t, lineup.NewMemoryStorage())
	go hub.run(&Config{})
	t.Cleanup(hub.stop)

	assert.False(t, hub.tryRetire(time.Now().Add(-time.Hour)))
	assert.False(t, hub.stopped())

	_, err := hub.do(context.Background(), ClientMessage{Type: "assign", Position: "ST", Player: "Vegetti"})
	require.NoError(t, err)

	assert.True(t, hub.tryRetire(time.Now().Add(time.Hour)))
	assert.True(t, hub.stopped())

	_, err = hub.do(context.Background(), ClientMessage{Type: "assign", Position: "GL", Player: "Keiller"})
	assert.ErrorIs(t, err, errLineupClosed)

	occupant, ok := hub.store.Occupant("GL")
	assert.False(t, ok)
	assert.Empty(t, occupant)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: lineup.ErrUnknownPosition, want: http.StatusBadRequest},
		{err: fmt.Errorf("assign: %w", lineup.ErrUnknownPlayer), want: http.StatusBadRequest},
		{err: errBadMessage, want: http.StatusBadRequest},
		{err: context.DeadlineExceeded, want: http.StatusServiceUnavailable},
		{err: context.Canceled, want: http.StatusServiceUnavailable},
		{err: errLineupClosed, want: http.StatusServiceUnavailable},
		{err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	base := srv.URL + "/lineup/export"

	postJSON(t, base+"/assign", ClientMessage{Position: "ST", Player: "Vegetti"})

	resp, err := http.Get(base + "/export.jpg")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "lineup.jpg")

	img, err := jpeg.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, lineup.FieldWidth, img.Bounds().Dx())
}

func TestQRCode(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/lineup/share/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	_, err = png.Decode(resp.Body)
	assert.NoError(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &Config{metrics: true})

	postJSON(t, srv.URL+"/lineup/metrics/assign", ClientMessage{Position: "ST", Player: "Vegetti"})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `lineup_moves_total{kind="assign",result="ok"} 1`)
}

func TestMetricsDisabledByDefault(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPrefix(t *testing.T) {
	srv, _ := newTestServer(t, &Config{prefix: "/football/"})

	resp, err := http.Get(srv.URL + "/football/lineup/abc/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/football/assets/lineup/app.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStaticRoutes(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/version", "/robots.txt", "/favicon.svg", "/favicons/site.webmanifest", "/assets/lineup/app.css"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
		})
	}

	resp, err := http.Get(srv.URL + "/assets/lineup/missing.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type wsEnvelope struct {
	Type      string          `json:"type"`
	Positions []PositionState `json:"positions"`
	Available []lineup.Player `json:"available"`
	Player    string          `json:"player"`
	Position  string          `json:"position"`
	Message   string          `json:"message"`
}

func dialLineup(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/lineup/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// every client is greeted with the lineup and its empty selection
	readType(t, conn, "state")
	readType(t, conn, "selection")

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg wsEnvelope
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readType(t *testing.T, conn *websocket.Conn, msgType string) wsEnvelope {
	t.Helper()

	for {
		msg := readMessage(t, conn)
		if msg.Type == msgType {
			return msg
		}
	}
}

func envelopeOccupant(msg wsEnvelope, position string) string {
	return occupant(StateMessage{Positions: msg.Positions}, position)
}

func TestWebSocketBroadcastsMoves(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	first := dialLineup(t, srv, "live")
	second := dialLineup(t, srv, "live")

	require.NoError(t, first.WriteJSON(ClientMessage{Type: "assign", Position: "ST", Player: "Vegetti"}))

	for _, conn := range []*websocket.Conn{first, second} {
		state := readType(t, conn, "state")
		assert.Equal(t, "Vegetti", envelopeOccupant(state, "ST"))
	}

	// dropped outside the field
	require.NoError(t, second.WriteJSON(ClientMessage{Type: "release", Player: "Vegetti"}))

	state := readType(t, first, "state")
	assert.Empty(t, envelopeOccupant(state, "ST"))
}

func TestWebSocketTapSelection(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tapper := dialLineup(t, srv, "tap")
	watcher := dialLineup(t, srv, "tap")

	require.NoError(t, tapper.WriteJSON(ClientMessage{Type: "select_player", Player: "Payet"}))
	sel := readType(t, tapper, "selection")
	assert.Equal(t, "Payet", sel.Player)
	assert.Empty(t, sel.Position)

	require.NoError(t, tapper.WriteJSON(ClientMessage{Type: "select_position", Position: "CM"}))
	sel = readType(t, tapper, "selection")
	assert.Empty(t, sel.Player)
	assert.Empty(t, sel.Position)

	state := readType(t, watcher, "state")
	assert.Equal(t, "Payet", envelopeOccupant(state, "CM"))

	require.NoError(t, tapper.WriteJSON(ClientMessage{Type: "select_position", Position: "ST"}))
	sel = readType(t, tapper, "selection")
	assert.Equal(t, "ST", sel.Position)

	require.NoError(t, tapper.WriteJSON(ClientMessage{Type: "deselect"}))
	sel = readType(t, tapper, "selection")
	assert.Empty(t, sel.Position)
}

func TestWebSocketReportsErrorsToSender(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	conn := dialLineup(t, srv, "errors")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "assign", Position: "XX", Player: "Vegetti"}))
	msg := readType(t, conn, "error")
	assert.Contains(t, msg.Message, "unknown position")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "dance"}))
	msg = readType(t, conn, "error")
	assert.Contains(t, msg.Message, "unknown message type")
}
