package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConvertServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := &convertServer{logger: slog.New(slog.DiscardHandler), maxBytes: 8 << 20}
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// readEvents collects events until the server closes the connection.
func readEvents(ctx context.Context, t *testing.T, conn *websocket.Conn) ([]wireEvent, error) {
	t.Helper()
	var evs []wireEvent
	for {
		var ev wireEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return evs, err
		}
		evs = append(evs, ev)
	}
}

func eventTypes(evs []wireEvent) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.T
	}
	return out
}

func TestServe_PerSheet(t *testing.T) {
	srv := newConvertServer(t)
	data, err := os.ReadFile(writeWorkbook(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv, "/convert?name=months.xlsx"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, data))
	evs, err := readEvents(ctx, t, conn)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))

	types := eventTypes(evs)
	require.NotEmpty(t, types)
	assert.Equal(t, "init", types[0])
	assert.Equal(t, "done", types[len(types)-1])
	assert.Contains(t, types, "status")

	var ready, multi *wireEvent
	for i := range evs {
		switch evs[i].T {
		case "ready":
			ready = &evs[i]
		case "socialcalc_multi":
			multi = &evs[i]
		}
	}
	require.NotNil(t, ready)
	assert.Equal(t, "months.xlsx", ready.Metadata.Name)
	assert.Equal(t, []string{"Jan", "Feb"}, ready.Metadata.SheetNames())

	require.NotNil(t, multi)
	require.Len(t, multi.Sheets, 2)
	assert.Equal(t, "Feb", multi.Sheets[1].Name)
	assert.Equal(t, "version:1.5\ncell:A1:t:Month\ncell:B1:v:150\nsheet:c:2:r:1", multi.Sheets[1].Save)
}

func TestServe_Concat(t *testing.T) {
	srv := newConvertServer(t)
	data, err := os.ReadFile(writeWorkbook(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv, "/convert?mode=concat"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, data))
	evs, _ := readEvents(ctx, t, conn)

	var save string
	for _, ev := range evs {
		if ev.T == "socialcalc" {
			save = ev.Save
		}
	}
	assert.True(t, strings.HasSuffix(save, "sheet:c:2:r:6"), save)
	assert.NotContains(t, eventTypes(evs), "socialcalc_multi")
}

func TestServe_BadWorkbook(t *testing.T) {
	srv := newConvertServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv, "/convert"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte("not a workbook")))
	evs, _ := readEvents(ctx, t, conn)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, "e", last.T)
	assert.Contains(t, last.D, "not an .xlsx workbook")
}

func TestServe_TextMessageRejected(t *testing.T) {
	srv := newConvertServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv, "/convert"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("hello")))
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusUnsupportedData, websocket.CloseStatus(err))
}

func TestServe_BadMode(t *testing.T) {
	srv := newConvertServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, wsURL(srv, "/convert?mode=sideways"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServe_Healthz(t *testing.T) {
	srv := newConvertServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
