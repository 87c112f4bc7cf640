package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JeseKi/fisco-autolight-client/internal/stream"
	"github.com/JeseKi/fisco-autolight-client/internal/terminal"
	"github.com/gorilla/websocket"
)

const keepAlive = 15 * time.Second

// logStreamHandler streams the recent window followed by live lines as server sent events
func (a *App) logStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming is not supported", http.StatusInternalServerError)
		return
	}

	recent, sub := a.bus.AttachWithRecent()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, line := range recent {
		if err := writeEvent(w, line); err != nil {
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-a.ctx.Done():
			return
		case line, open := <-sub.C():
			if !open {
				return
			}
			if err := writeEvent(w, line); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, line stream.Line) error {
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", line.Seq, data)
	return err
}

// terminalHandler bridges a websocket to a new console process
func (a *App) terminalHandler(w http.ResponseWriter, r *http.Request) {
	con, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	console, err := terminal.Spawn(terminal.Config{
		Command:     a.config.ConsoleCommand,
		Dir:         a.config.ConsoleDir,
		InitCommand: a.config.ConsoleInitCommand,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("dir", a.config.ConsoleDir).Msg("failed to start console")
		_ = con.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("\r\n[ERROR] %s\r\n", err)))
		_ = con.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "console unavailable"), time.Now().Add(time.Second))
		_ = con.Close()
		return
	}

	a.terminals.Add(1)
	defer a.terminals.Done()

	a.logger.Info().Str("remote", r.RemoteAddr).Msg("terminal session opened")
	if err := terminal.Bridge(a.ctx, con, console, a.logger); err != nil {
		a.logger.Debug().Err(err).Msg("terminal session ended")
	}
	a.logger.Info().Str("remote", r.RemoteAddr).Msg("terminal session closed")
}
