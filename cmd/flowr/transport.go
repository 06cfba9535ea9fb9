package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lyzr/flowr/common/logger"
	"github.com/lyzr/flowr/common/telemetry"
	"github.com/lyzr/flowr/internal/coordinator"
	"github.com/lyzr/flowr/internal/debugger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// submissionRequest is the POST /submissions body (§6 "receive a
// submission"). The library search path is not part of a request: every
// submission uses the resolver built from cmd/flowr's own -L/-n flags.
type submissionRequest struct {
	ManifestURL     string `json:"manifest_url"`
	MaxParallelJobs int    `json:"max_parallel_jobs"`
	Threads         int    `json:"threads"`
	Debug           bool   `json:"debug"`
}

type submissionResponse struct {
	JobCount int64  `json:"job_count"`
	Reset    bool   `json:"reset"`
	Exited   bool   `json:"exited"`
	Error    string `json:"error,omitempty"`
}

// apiServer is the echo host for -s/--server mode: POST /submissions runs
// a flow to completion and returns its outcome; GET /debug/ws upgrades to
// a websocket carrying the ClientCommand/ServerEvent protocol for a
// submission made with debug=true; GET /metrics and GET /health expose
// the usual operational surface (§6.E).
type apiServer struct {
	coord *coordinator.Coordinator
	log   *logger.Logger
	tel   *telemetry.Telemetry
}

func newAPIServer(coord *coordinator.Coordinator, tel *telemetry.Telemetry, log *logger.Logger) *apiServer {
	return &apiServer{coord: coord, log: log, tel: tel}
}

func (a *apiServer) handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	e.POST("/submissions", a.handleSubmission)
	e.GET("/debug/ws", a.handleDebugWS)
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if a.tel != nil {
		e.GET("/metrics", echo.WrapHandler(a.tel.MetricsHandler()))
	}
	return e
}

func (a *apiServer) handleSubmission(c echo.Context) error {
	var req submissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid submission: %v", err))
	}
	if req.ManifestURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "manifest_url is required")
	}
	a.log.Info("received submission", "manifest_url", req.ManifestURL, "debug", req.Debug)

	sub := coordinator.Submission{
		ManifestURL:     req.ManifestURL,
		MaxParallelJobs: req.MaxParallelJobs,
		Threads:         req.Threads,
		Debug:           req.Debug,
	}
	if sub.Debug {
		// The client drives the debug exchange over /debug/ws instead;
		// this request blocks on the coordinator's own channel, which
		// handleDebugWS wires to the same websocket connection.
		ch := newWSChannelRequest(req.ManifestURL)
		registerPendingDebugChannel(ch)
		defer unregisterPendingDebugChannel(req.ManifestURL)
		sub.DebugChannel = ch
	}

	outcome, err := a.coord.Run(c.Request().Context(), sub)
	resp := submissionResponse{JobCount: outcome.JobCount, Reset: outcome.Reset, Exited: outcome.Exited}
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleDebugWS upgrades to a websocket and pumps it into the pending
// debug channel that handleSubmission registered for the same
// manifest_url — the simplest pairing that keeps the debugger protocol
// off the request/response path without inventing a session-id scheme
// this spec never asks for.
func (a *apiServer) handleDebugWS(c echo.Context) error {
	manifestURL := c.QueryParam("manifest_url")
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("debug websocket upgrade: %w", err)
	}
	defer conn.Close()

	ch := waitForPendingDebugChannel(c.Request().Context(), manifestURL)
	if ch == nil {
		conn.WriteJSON(map[string]string{"error": "no pending debug submission for manifest_url"})
		return nil
	}
	ch.pump(conn)
	return nil
}

// wsDebugChannel adapts a gorilla websocket connection to
// debugger.DebugChannel, framing each ServerEvent/ClientCommand as one
// JSON text message, matching the fanout example's one-message-per-frame
// convention.
type wsDebugChannel struct {
	manifestURL string
	conn        chan *websocket.Conn
	ready       chan struct{}
}

func newWSChannelRequest(manifestURL string) *wsDebugChannel {
	return &wsDebugChannel{manifestURL: manifestURL, conn: make(chan *websocket.Conn, 1), ready: make(chan struct{})}
}

func (w *wsDebugChannel) pump(conn *websocket.Conn) {
	w.conn <- conn
	close(w.ready)
	<-w.conn // block until the coordinator side is done with the connection (closed by defer in handleDebugWS)
}

func (w *wsDebugChannel) activeConn() *websocket.Conn {
	<-w.ready
	c := <-w.conn
	w.conn <- c
	return c
}

func (w *wsDebugChannel) Send(ev debugger.ServerEvent) error {
	conn := w.activeConn()
	return conn.WriteJSON(ev)
}

func (w *wsDebugChannel) Recv() (debugger.ClientCommand, error) {
	conn := w.activeConn()
	var cmd debugger.ClientCommand
	_, data, err := conn.ReadMessage()
	if err != nil {
		return debugger.ClientCommand{}, err
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return debugger.ClientCommand{}, fmt.Errorf("decode client command: %w", err)
	}
	return cmd, nil
}

// pendingDebugChannels pairs a POST /submissions(debug=true) call with the
// GET /debug/ws upgrade that follows it, keyed by manifest_url. A real
// deployment would key on a submission id instead of the manifest url;
// this runtime keeps one flow in flight per url at a time, which is
// enough for the CLI's own -c/--client workflow. waitForPendingDebugChannel
// blocks (with a generous timeout) rather than failing immediately,
// since the websocket upgrade can race ahead of the POST that registers
// the channel.
var pendingDebugChannels = struct {
	mu sync.Mutex
	m  map[string]*wsDebugChannel
	wake map[string]chan struct{}
}{m: map[string]*wsDebugChannel{}, wake: map[string]chan struct{}{}}

func registerPendingDebugChannel(ch *wsDebugChannel) {
	pendingDebugChannels.mu.Lock()
	defer pendingDebugChannels.mu.Unlock()
	pendingDebugChannels.m[ch.manifestURL] = ch
	if w, ok := pendingDebugChannels.wake[ch.manifestURL]; ok {
		close(w)
		delete(pendingDebugChannels.wake, ch.manifestURL)
	}
}

func unregisterPendingDebugChannel(manifestURL string) {
	pendingDebugChannels.mu.Lock()
	defer pendingDebugChannels.mu.Unlock()
	delete(pendingDebugChannels.m, manifestURL)
}

func waitForPendingDebugChannel(ctx context.Context, manifestURL string) *wsDebugChannel {
	pendingDebugChannels.mu.Lock()
	if ch, ok := pendingDebugChannels.m[manifestURL]; ok {
		pendingDebugChannels.mu.Unlock()
		return ch
	}
	w, ok := pendingDebugChannels.wake[manifestURL]
	if !ok {
		w = make(chan struct{})
		pendingDebugChannels.wake[manifestURL] = w
	}
	pendingDebugChannels.mu.Unlock()

	select {
	case <-w:
		pendingDebugChannels.mu.Lock()
		defer pendingDebugChannels.mu.Unlock()
		return pendingDebugChannels.m[manifestURL]
	case <-time.After(10 * time.Second):
		return nil
	case <-ctx.Done():
		return nil
	}
}

// runClient implements -c/--client PORT: post a submission to a running
// -s/--server instance and, when -d is also set, drive the local REPL
// (localdebug.go) over the matching websocket connection instead of an
// in-process DebugChannel.
func runClient(ctx context.Context, addr string, manifestURL string, maxParallel, threads int, debug bool, log *logger.Logger) error {
	client := &http.Client{Timeout: 0}

	if debug {
		wsURL := fmt.Sprintf("ws://%s/debug/ws?manifest_url=%s", addr, manifestURL)
		done := make(chan error, 1)
		go func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				done <- fmt.Errorf("dial debug websocket: %w", err)
				return
			}
			defer conn.Close()
			done <- driveRemoteREPL(conn)
		}()
		// Give the dialer a moment to connect before the submission
		// races ahead of it on the server side.
		time.Sleep(200 * time.Millisecond)
		if err := postSubmission(ctx, client, addr, manifestURL, maxParallel, threads, true); err != nil {
			return err
		}
		return <-done
	}

	return postSubmission(ctx, client, addr, manifestURL, maxParallel, threads, false)
}

func postSubmission(ctx context.Context, client *http.Client, addr, manifestURL string, maxParallel, threads int, debug bool) error {
	body, err := json.Marshal(submissionRequest{ManifestURL: manifestURL, MaxParallelJobs: maxParallel, Threads: threads, Debug: debug})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://%s/submissions", addr), jsonBody(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()

	var out submissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode submission response: %w", err)
	}
	if out.Error != "" {
		return fmt.Errorf("submission failed: %s", out.Error)
	}
	fmt.Printf("completed: %d jobs\n", out.JobCount)
	return nil
}

// driveRemoteREPL reuses the local command parser against the remote
// websocket, so the same "b foo:1", "s", "c" vocabulary works whether the
// coordinator is in-process or across the wire.
func driveRemoteREPL(conn *websocket.Conn) error {
	for {
		var ev debugger.ServerEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return nil
		}
		fmt.Printf("<< %s %v\n", ev.Kind, ev.Data)
		if ev.Kind == "ExitingDebugger" {
			return nil
		}

		fmt.Print("debug> ")
		line, ok := readLine()
		if !ok {
			return nil
		}
		cmd, ok := parseDebugLine(line)
		if !ok {
			continue
		}
		if err := conn.WriteJSON(cmd); err != nil {
			return err
		}
		if cmd.Kind == "ExitDebugger" {
			return nil
		}
	}
}

func jsonBody(b []byte) *bytes.Reader { return bytes.NewReader(b) }

var stdinReader = bufio.NewScanner(os.Stdin)

func readLine() (string, bool) {
	if !stdinReader.Scan() {
		return "", false
	}
	return stdinReader.Text(), true
}
