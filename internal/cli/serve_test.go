package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fusion/internal/catalog"
	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/session"
	"github.com/roach88/fusion/internal/store"
	"github.com/roach88/fusion/internal/transport/ws"
)

// startServe runs the serve command on a loopback listener until the
// test ends. It returns the bound address.
func startServe(t *testing.T, opts *ServeOptions) (string, *bytes.Buffer) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ready := make(chan string, 1)
	opts.listener = ln
	opts.ready = ready

	ctx, cancel := context.WithCancel(context.Background())
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() {
		done <- runServe(opts, cmd)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err, "serve returns cleanly on cancel")
		case <-time.After(10 * time.Second):
			t.Error("serve did not stop")
		}
	})

	select {
	case addr := <-ready:
		return addr, out
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not start")
	}
	return "", nil
}

func wsCall(t *testing.T, conn *websocket.Conn, req ws.Request) ws.Reply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	return wsRead(t, conn)
}

func wsRead(t *testing.T, conn *websocket.Conn) ws.Reply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var r ws.Reply
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func intp(i int) *int { return &i }

func TestServeSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "serve.db")
	addr, _ := startServe(t, &ServeOptions{
		RootOptions: &RootOptions{Format: "json"},
		Book:        elementsBook,
		Database:    db,
		HandSize:    3,
	})

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 2, health["recipes"])

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	welcome := wsRead(t, conn)
	require.Equal(t, ws.TypeWelcome, welcome.Type)

	wsCall(t, conn, ws.Request{Type: ws.TypeDeal, Cards: []string{"Fire", "Water", "Earth"}})
	wsCall(t, conn, ws.Request{Type: ws.TypeToggleOn, Slot: intp(0)})
	wsCall(t, conn, ws.Request{Type: ws.TypeToggleOn, Slot: intp(1)})
	fused := wsCall(t, conn, ws.Request{Type: ws.TypeFuse})
	require.NotNil(t, fused.Outcome)
	assert.Equal(t, "Steam", fused.Outcome.Result)
	require.NoError(t, conn.Close())

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	log, err := st.LoadSessionLog(ctx, welcome.SessionID)
	require.NoError(t, err)
	require.Len(t, log.Events, 4)
	assert.Equal(t, ir.EventFuse, log.Events[3].Kind)
	assert.Greater(t, log.Events[0].Seq, log.Session.CreatedSeq)

	cat, _ := catalog.BuildWithOptions(catalog.FromSpecs(log.Book.Recipes), catalog.BuildOptions{})
	rr, err := session.Replay(ctx, cat, log.Events, session.WithHandSize(log.Session.HandSize))
	require.NoError(t, err)
	assert.True(t, rr.Deterministic(), "served sessions replay")
}

func TestServeTextBanner(t *testing.T) {
	addr, out := startServe(t, &ServeOptions{
		RootOptions: &RootOptions{Format: "text"},
		Book:        elementsBook,
		HandSize:    3,
	})

	// The banner is written before ready is signalled.
	assert.Contains(t, out.String(), "Serving sessions on ws://"+addr+"/ws")
}

func TestServeWithoutDatabase(t *testing.T) {
	addr, _ := startServe(t, &ServeOptions{
		RootOptions: &RootOptions{Format: "json"},
		Book:        elementsBook,
		HandSize:    2,
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	welcome := wsRead(t, conn)
	assert.Equal(t, 2, welcome.HandSize)

	r := wsCall(t, conn, ws.Request{Type: ws.TypeFuse})
	require.NotNil(t, r.Error)
	assert.Equal(t, "INVALID_STATE", r.Error.Code)
}

func TestServeMissingBook(t *testing.T) {
	out, err := execute(t, NewServeCommand(&RootOptions{Format: "json"}))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeData(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBadArgument, resp.Error.Code)
	assert.Equal(t, "--book is required", resp.Error.Message)
}

func TestServeBookNotFound(t *testing.T) {
	_, err := execute(t, NewServeCommand(&RootOptions{Format: "text"}), "--book", filepath.Join(t.TempDir(), "none.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReloadBook(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	path := filepath.Join(t.TempDir(), "book.cue")
	require.NoError(t, os.WriteFile(path, []byte(`recipe: [{ingredients: ["Fire", "Water"], result: "Steam"}]`), 0644))

	book, err := LoadBook(path)
	require.NoError(t, err)
	cat, _ := buildCatalog(book, logger)
	holder := catalog.NewHolder(cat)

	st, err := store.Open(memoryDB)
	require.NoError(t, err)
	defer st.Close()
	clock := session.NewClock()
	v1, err := st.WriteBook(ctx, book, clock.Next())
	require.NoError(t, err)
	srv := ws.NewServer(holder, ws.WithStore(st, v1), ws.WithClock(clock))

	require.NoError(t, os.WriteFile(path, []byte(`recipe: [{ingredients: ["Fire", "Water"], result: "Mist"}]`), 0644))
	reloadBook(ctx, path, holder, srv, st, clock, logger)

	got, ok := holder.TryMatch("Water", "Fire")
	require.True(t, ok)
	assert.Equal(t, "Mist", string(got))

	// A broken book keeps the current catalog.
	require.NoError(t, os.WriteFile(path, []byte(`recipe: "nope"`), 0644))
	reloadBook(ctx, path, holder, srv, st, clock, logger)

	got, ok = holder.TryMatch("Fire", "Water")
	require.True(t, ok)
	assert.Equal(t, "Mist", string(got))
}
