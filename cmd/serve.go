package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cosheet/cosheet-cli/codec"
	"github.com/cosheet/cosheet-cli/job"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveMaxBytes int64
	serveOrigins  []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve workbook conversion over a websocket",
	Long: `Run a conversion service for browser front-ends.

Connect to ws://<addr>/convert?mode=per-sheet|concat[&name=<workbook name>] and
send the workbook as one binary message. The server replies with JSON events:

  {"t":"init","d":...}                    job started
  {"t":"status","d":...}                  progress text
  {"t":"ready","metadata":{...}}          sheet names and used ranges
  {"t":"socialcalc","save":...}           concat mode result
  {"t":"socialcalc_multi","sheets":[...]} per-sheet results ({"name","save"})
  {"t":"e","d":...}                       failure
  {"t":"done"}                            success

and then closes the connection. Closing the connection cancels the job.

Examples:
  cosheet serve --addr :8080
  cosheet serve --origin "sheets.example.com"`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().Int64Var(&serveMaxBytes, "max-bytes", 64<<20, "Largest accepted workbook in bytes")
	serveCmd.Flags().StringArrayVar(&serveOrigins, "origin", nil, "Allowed cross-origin host pattern (repeatable)")
	rootCmd.AddCommand(serveCmd)
}

type wireSheet struct {
	Name string `json:"name"`
	Save string `json:"save"`
}

// wireEvent is the JSON shape sent to websocket clients.
type wireEvent struct {
	T        string        `json:"t"`
	D        string        `json:"d,omitempty"`
	Metadata *job.Metadata `json:"metadata,omitempty"`
	Save     string        `json:"save,omitempty"`
	Sheets   []wireSheet   `json:"sheets,omitempty"`
}

func toWire(ev job.Event) wireEvent {
	switch ev.Kind {
	case job.EventInit, job.EventStatus:
		return wireEvent{T: string(ev.Kind), D: ev.Message}
	case job.EventReady:
		return wireEvent{T: "ready", Metadata: ev.Metadata}
	case job.EventPayload:
		if ev.Mode == codec.ModeConcatenated {
			return wireEvent{T: "socialcalc", Save: ev.Streams[0].String()}
		}
		sheets := make([]wireSheet, len(ev.Streams))
		for i, s := range ev.Streams {
			sheets[i] = wireSheet{Name: s.Title, Save: s.String()}
		}
		return wireEvent{T: "socialcalc_multi", Sheets: sheets}
	case job.EventError:
		return wireEvent{T: "e", D: ev.Err.Error()}
	default:
		return wireEvent{T: string(ev.Kind)}
	}
}

type convertServer struct {
	logger   *slog.Logger
	maxBytes int64
	origins  []string
}

func (s *convertServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /convert", s.handleConvert)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func (s *convertServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	mode := codec.ModePerSheet
	if v := r.URL.Query().Get("mode"); v != "" {
		m, err := codec.ParseMode(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = m
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "workbook.xlsx"
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.maxBytes)

	ctx := r.Context()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		s.logger.Debug("no workbook received", "remote", r.RemoteAddr, "err", err)
		return
	}
	if typ != websocket.MessageBinary {
		conn.Close(websocket.StatusUnsupportedData, "expected one binary message with the workbook")
		return
	}

	// Any further message or a close from the peer cancels the job.
	ctx = conn.CloseRead(ctx)
	h := job.Submit(ctx, data, job.Options{Mode: mode, Name: name, Logger: s.logger})
	defer h.Cancel()

	start := time.Now()
	for ev := range h.Events() {
		if err := wsjson.Write(ctx, conn, toWire(ev)); err != nil {
			s.logger.Debug("client went away", "remote", r.RemoteAddr, "err", err)
			return
		}
	}
	_, jobErr := h.Wait()
	s.logger.Info("conversion finished", "remote", r.RemoteAddr, "mode", mode, "bytes", len(data),
		"elapsed", time.Since(start).Round(time.Millisecond), "err", jobErr)
	conn.Close(websocket.StatusNormalClosure, "")
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmdContext(cmd)
	logger := newLogger()

	s := &convertServer{logger: logger, maxBytes: serveMaxBytes, origins: serveOrigins}
	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	fmt.Fprintf(os.Stderr, "note: listening on %s\n", serveAddr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
