/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Lineup builder
//
// Each lineup lives at $prefix/lineup/:id and is saved in the configured
// store under that id. Visiting $prefix/lineup returns the browser to the
// lineup it last opened (by cookie), or starts a new one.
//
// Features:
// - Drag a player onto a position to place them. Dropping onto an occupied
//   position swaps, dropping outside the field sends the player back to the bench.
// - Tap a player and a position (either order) to place them, tap outside to cancel.
// - Every open tab of a lineup is kept in sync over a websocket at /ws.
// - JSON endpoints for state, assign, release and reset.
// - JPEG export of the field at /export.jpg, QR share code at /qr.
// - Idle lineups are unloaded after --session-timeout; their state stays in the store.

package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/lineup/lineup"
)

const (
	lineupPath       = "/lineup"
	lineupCookieName = "lineup_id"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	errLineupClosed = errors.New("lineup was unloaded")
	errBadMessage   = errors.New("unknown message type")

	validLineupID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "assign", "release", "reset", "select_player", "select_position", "deselect"
	Position string `json:"position,omitempty"` // assign / select_position
	Player   string `json:"player,omitempty"`   // assign / release / select_player
}

// PositionState is one position on the field along with its occupant.
type PositionState struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Top      float64 `json:"top"`
	Left     float64 `json:"left"`
	Player   string  `json:"player,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

// StateMessage is broadcast to every client of a lineup after each change.
type StateMessage struct {
	Type      string          `json:"type"` // "state"
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Positions []PositionState `json:"positions"`
	Available []lineup.Player `json:"available"`
}

// SelectionMessage reports a single client's pending tap selection.
type SelectionMessage struct {
	Type     string `json:"type"` // "selection"
	Player   string `json:"player,omitempty"`
	Position string `json:"position,omitempty"`
}

// ErrorMessage is sent only to the client whose request failed.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type Client struct {
	conn      *websocket.Conn
	send      chan any
	selection *lineup.Selection
}

type moveResult struct {
	assignments lineup.Assignments
	err         error
}

// moveRequest is handled on the hub goroutine. Websocket requests carry a
// client; HTTP requests carry a reply channel.
type moveRequest struct {
	client *Client
	msg    ClientMessage
	reply  chan moveResult
}

// retireRequest asks the hub goroutine to stop if it is still idle since cutoff.
type retireRequest struct {
	cutoff time.Time
	reply  chan bool
}

type Hub struct {
	id      string
	title   string
	store   *lineup.Store
	metrics *Metrics

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	moves    chan moveRequest
	retire   chan retireRequest
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	lastActive time.Time
	connected  int
}

func newHub(cfg *Config, store *lineup.Store, metrics *Metrics) *Hub {
	return &Hub{
		id:         store.Slot(),
		title:      cfg.title,
		store:      store,
		metrics:    metrics,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		moves:      make(chan moveRequest),
		retire:     make(chan retireRequest),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
}

func (h *Hub) touch(delta int) {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.connected += delta
	h.mu.Unlock()
}

func (h *Hub) idleSince() (time.Time, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive, h.connected
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// tryRetire stops the hub if it has had no clients and no moves since cutoff.
// The check runs on the hub goroutine, so a move is never half applied when
// the hub stops.
func (h *Hub) tryRetire(cutoff time.Time) bool {
	reply := make(chan bool, 1)

	select {
	case h.retire <- retireRequest{cutoff: cutoff, reply: reply}:
		return <-reply
	case <-h.done:
		return true
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.touch(1)
			h.metrics.connections.Inc()

			c.send <- h.state()
			c.send <- selectionOf(c)

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.touch(-1)
				h.metrics.connections.Dec()
			}

		case req := <-h.moves:
			if h.stopped() {
				if req.reply != nil {
					req.reply <- moveResult{err: errLineupClosed}
				}
				continue
			}
			h.touch(0)
			h.handleMove(cfg, req)

		case r := <-h.retire:
			last, connected := h.idleSince()
			idle := connected == 0 && last.Before(r.cutoff)
			if idle {
				h.stop()
			}
			r.reply <- idle

		case <-h.done:
			for c := range h.clients {
				close(c.send)
				_ = c.conn.Close()
				delete(h.clients, c)
				h.metrics.connections.Dec()
			}
			return
		}
	}
}

// do hands an HTTP request to the hub and waits for the outcome.
func (h *Hub) do(ctx context.Context, msg ClientMessage) (lineup.Assignments, error) {
	reply := make(chan moveResult, 1)

	select {
	case h.moves <- moveRequest{msg: msg, reply: reply}:
	case <-h.done:
		return nil, errLineupClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.assignments, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) handleMove(cfg *Config, req moveRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	msg := req.msg

	var (
		a       lineup.Assignments
		err     error
		changed bool
	)

	switch msg.Type {
	case "assign":
		kind := "assign"
		if msg.Player == "" {
			kind = "clear"
		}
		a, err = h.store.Assign(ctx, lineup.PositionID(msg.Position), lineup.PlayerID(msg.Player))
		h.metrics.move(kind, err)
		changed = err == nil

	case "release":
		a, err = h.store.Release(ctx, lineup.PlayerID(msg.Player))
		h.metrics.move("release", err)
		changed = err == nil

	case "reset":
		a, err = h.store.Reset(ctx)
		h.metrics.move("reset", err)
		changed = err == nil

	case "select_player", "select_position", "deselect":
		if req.client == nil {
			err = fmt.Errorf("%w: %s", errBadMessage, msg.Type)
			break
		}
		a, changed, err = h.handleSelection(ctx, req.client, msg)

	default:
		err = fmt.Errorf("%w: %q", errBadMessage, msg.Type)
	}

	if err != nil {
		logf(cfg, "LINEUP: %s in %s failed: %v", msg.Type, h.id, err)
	} else if changed {
		logf(cfg, "LINEUP: %s position=%q player=%q in %s", msg.Type, msg.Position, msg.Player, h.id)
	}

	if req.reply != nil {
		req.reply <- moveResult{assignments: a, err: err}
	}
	if req.client != nil && err != nil {
		h.sendTo(req.client, ErrorMessage{Type: "error", Message: err.Error()})
	}

	if changed {
		h.broadcast(h.state())
	}
}

// handleSelection runs on the hub goroutine, which owns every client's selection.
func (h *Hub) handleSelection(ctx context.Context, c *Client, msg ClientMessage) (lineup.Assignments, bool, error) {
	var (
		a    lineup.Assignments
		done bool
		err  error
	)

	switch msg.Type {
	case "select_player":
		a, done, err = c.selection.SelectPlayer(ctx, lineup.PlayerID(msg.Player))
	case "select_position":
		a, done, err = c.selection.SelectPosition(ctx, lineup.PositionID(msg.Position))
	case "deselect":
		c.selection.Clear()
	}

	if done {
		h.metrics.move("assign", err)
	}

	h.sendTo(c, selectionOf(c))

	return a, done, err
}

func (h *Hub) sendTo(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
		h.touch(-1)
		h.metrics.connections.Dec()
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

func (h *Hub) state() StateMessage {
	return buildState(h.id, h.title, h.store)
}

func buildState(id, title string, store *lineup.Store) StateMessage {
	catalog := store.Catalog()
	a := store.Snapshot()

	positions := make([]PositionState, 0, len(catalog.Positions))
	for _, p := range catalog.Positions {
		ps := PositionState{
			ID:    string(p.ID),
			Label: p.Label,
			Top:   p.Top,
			Left:  p.Left,
		}
		if name, ok := a[p.ID]; ok {
			ps.Player = string(name)
			if player, ok := catalog.Player(name); ok {
				ps.ImageURL = player.ImageURL
			}
		}
		positions = append(positions, ps)
	}

	return StateMessage{
		Type:      "state",
		ID:        id,
		Title:     title,
		Positions: positions,
		Available: store.UnassignedPlayers(),
	}
}

func selectionOf(c *Client) SelectionMessage {
	player, position := c.selection.Pending()

	return SelectionMessage{
		Type:     "selection",
		Player:   string(player),
		Position: string(position),
	}
}

// LineupManager holds the loaded lineups keyed by id.
type LineupManager struct {
	cfg     *Config
	catalog *lineup.Catalog
	storage lineup.Storage
	metrics *Metrics

	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	quit        chan struct{}
	quitOnce    sync.Once
}

func newLineupManager(cfg *Config, catalog *lineup.Catalog, storage lineup.Storage, metrics *Metrics) *LineupManager {
	lm := &LineupManager{
		cfg:         cfg,
		catalog:     catalog,
		storage:     storage,
		metrics:     metrics,
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
		quit:        make(chan struct{}),
	}

	if lm.idleTimeout > 0 {
		go lm.reaperLoop()
	}

	return lm
}

// getHub returns the loaded lineup for id, restoring it from storage if needed.
func (lm *LineupManager) getHub(ctx context.Context, id string) (*Hub, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if hub, ok := lm.hubs[id]; ok {
		return hub, nil
	}

	store, err := lineup.Open(ctx, lm.catalog, lm.storage, id, storeLogger{cfg: lm.cfg})
	if err != nil {
		return nil, err
	}

	hub := newHub(lm.cfg, store, lm.metrics)
	lm.hubs[id] = hub
	lm.metrics.lineups.Set(float64(len(lm.hubs)))

	go hub.run(lm.cfg)

	logf(lm.cfg, "LINEUP: Loaded %s", id)

	return hub, nil
}

// do runs msg against lineup id, reloading the lineup once if it was
// unloaded while the request was in flight.
func (lm *LineupManager) do(ctx context.Context, id string, msg ClientMessage) (*Hub, lineup.Assignments, error) {
	for range 2 {
		hub, err := lm.getHub(ctx, id)
		if err != nil {
			return nil, nil, err
		}

		a, err := hub.do(ctx, msg)
		if errors.Is(err, errLineupClosed) {
			continue
		}
		return hub, a, err
	}

	return nil, nil, errLineupClosed
}

// reaperLoop periodically unloads lineups that have no clients and have been
// idle longer than idleTimeout.
func (lm *LineupManager) reaperLoop() {
	ticker := time.NewTicker(lm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-lm.quit:
			return
		case <-ticker.C:
			lm.reap(time.Now().Add(-lm.idleTimeout))
		}
	}
}

func (lm *LineupManager) reap(cutoff time.Time) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for id, hub := range lm.hubs {
		last, connected := hub.idleSince()
		if connected == 0 && last.Before(cutoff) && hub.tryRetire(cutoff) {
			delete(lm.hubs, id)
			logf(lm.cfg, "LINEUP: Unloaded idle %s", id)
		}
	}

	lm.metrics.lineups.Set(float64(len(lm.hubs)))
}

func (lm *LineupManager) stop() {
	lm.quitOnce.Do(func() { close(lm.quit) })

	lm.mu.Lock()
	defer lm.mu.Unlock()

	for id, hub := range lm.hubs {
		delete(lm.hubs, id)
		hub.stop()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func setLineupCookie(cfg *Config, w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     lineupCookieName,
		Value:    id,
		Path:     cfg.prefix + "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func lineupID(w http.ResponseWriter, ps httprouter.Params) (string, bool) {
	id := ps.ByName("id")
	if !validLineupID.MatchString(id) {
		http.Error(w, "invalid lineup id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lineup.ErrUnknownPosition),
		errors.Is(err, lineup.ErrUnknownPlayer),
		errors.Is(err, errBadMessage):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, errLineupClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// redirectLineup handles GET /lineup by returning to the lineup remembered
// in the cookie, or starting a new one. ?new forces a new lineup.
func redirectLineup(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id := ""
		if c, err := r.Cookie(lineupCookieName); err == nil && validLineupID.MatchString(c.Value) && !r.URL.Query().Has("new") {
			id = c.Value
		} else {
			id = uuid.NewString()
			logf(cfg, "LINEUP: Created %s for %s", id, realIP(r))
		}

		setLineupCookie(cfg, w, id)
		http.Redirect(w, r, cfg.prefix+lineupPath+"/"+id, http.StatusSeeOther)
	}
}

//go:embed assets/lineup/index.html
var indexHTML []byte

func serveLineupPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		id, ok := lineupID(w, ps)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		setLineupCookie(cfg, w, id)

		written, _ := w.Write(indexHTML)

		logf(cfg, "SERVE: Lineup page %s (%s) to %s in %s",
			id,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveState(cfg *Config, lm *LineupManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, ok := lineupID(w, ps)
		if !ok {
			return
		}

		securityHeaders(cfg, w)

		hub, err := lm.getHub(r.Context(), id)
		if err != nil {
			_ = writeJSON(w, http.StatusInternalServerError, ErrorMessage{Type: "error", Message: err.Error()})
			return
		}

		if err := writeJSON(w, http.StatusOK, hub.state()); err != nil {
			errs <- err
		}
	}
}

// serveMove decodes a JSON ClientMessage body and applies it as msgType.
func serveMove(cfg *Config, lm *LineupManager, msgType string, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, ok := lineupID(w, ps)
		if !ok {
			return
		}

		securityHeaders(cfg, w)

		var msg ClientMessage
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
		if err := dec.Decode(&msg); err != nil && !errors.Is(err, io.EOF) {
			_ = writeJSON(w, http.StatusBadRequest, ErrorMessage{Type: "error", Message: "invalid request body"})
			return
		}
		msg.Type = msgType

		hub, _, err := lm.do(r.Context(), id, msg)
		if err != nil {
			_ = writeJSON(w, statusFor(err), ErrorMessage{Type: "error", Message: err.Error()})
			return
		}

		if err := writeJSON(w, http.StatusOK, hub.state()); err != nil {
			errs <- err
		}
	}
}

func serveExport(cfg *Config, lm *LineupManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		id, ok := lineupID(w, ps)
		if !ok {
			return
		}

		hub, err := lm.getHub(r.Context(), id)
		if err != nil {
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}

		var buf bytes.Buffer
		err = lineup.Render(&buf, hub.store.Catalog(), hub.store.Snapshot(), lineup.RenderOptions{Title: cfg.title})
		lm.metrics.export(err)
		if err != nil {
			errorf("export of %s failed: %v", id, err)
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Disposition", `attachment; filename="lineup.jpg"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(buf.Bytes())
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Export of %s (%s) to %s in %s",
			id,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveQR generates a PNG QR code for the lineup URL using go-qrcode.
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if _, ok := lineupID(w, ps); !ok {
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func serveWS(cfg *Config, lm *LineupManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, ok := lineupID(w, ps)
		if !ok {
			return
		}

		hub, err := lm.getHub(r.Context(), id)
		if err != nil {
			http.Error(w, "could not load lineup", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "LINEUP: Upgrade for %s failed: %v", id, err)
			return
		}

		client := &Client{
			conn:      conn,
			send:      make(chan any, 16),
			selection: lineup.NewSelection(hub.store),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.moves <- moveRequest{client: c, msg: msg}:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// registerLineup sets up routes so that:
//   - $path                    → redirects to the remembered or a new lineup (?new for a new one)
//   - $path/:id                → HTML client
//   - $path/:id/state          → JSON state
//   - $path/:id/assign         → POST {position, player}
//   - $path/:id/release        → POST {player}
//   - $path/:id/reset          → POST
//   - $path/:id/ws             → WebSocket for that lineup
//   - $path/:id/qr             → PNG QR code for that lineup URL
//   - $path/:id/export.jpg     → JPEG export of the field
func registerLineup(cfg *Config, lm *LineupManager, mux *httprouter.Router, errs chan<- error) {
	path := cfg.prefix + lineupPath

	mux.GET(path, redirectLineup(cfg))
	mux.GET(path+"/:id", serveLineupPage(cfg))
	mux.GET(path+"/:id/state", serveState(cfg, lm, errs))
	mux.POST(path+"/:id/assign", serveMove(cfg, lm, "assign", errs))
	mux.POST(path+"/:id/release", serveMove(cfg, lm, "release", errs))
	mux.POST(path+"/:id/reset", serveMove(cfg, lm, "reset", errs))
	mux.GET(path+"/:id/ws", serveWS(cfg, lm))
	mux.GET(path+"/:id/qr", serveQR(cfg))
	mux.GET(path+"/:id/export.jpg", serveExport(cfg, lm, errs))
}
