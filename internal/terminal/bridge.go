package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait     = 40 * time.Second
	pingInterval = 20 * time.Second
	writeWait    = 10 * time.Second
	readSize     = 1024
)

// Terminal is the console side of a bridge
type Terminal interface {
	io.ReadWriteCloser
	Resize(rows, cols uint16) error
}

type resize struct {
	Type string `json:"type"`
	Rows uint16 `json:"rows"`
	Cols uint16 `json:"cols"`
}

// Bridge relays frames between con and term until either side closes or ctx is done.
// Both the websocket and the terminal are closed on return.
func Bridge(ctx context.Context, con *websocket.Conn, term Terminal, logger zerolog.Logger) error {
	defer con.Close()
	defer term.Close()

	local, cancel := context.WithCancel(ctx)
	defer cancel()

	output := make(chan []byte)
	go pump(local, cancel, term, output, logger)
	go receive(local, cancel, con, term, logger)

	pong := make(chan byte, 1)
	con.SetPongHandler(func(string) error {
		select {
		case pong <- 1:
		default:
		}
		return nil
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			_ = con.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return ctx.Err()
		case <-local.Done():
			_ = con.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "console exited"), time.Now().Add(writeWait))
			return nil
		case data := <-output:
			typ := websocket.BinaryMessage
			if utf8.Valid(data) {
				typ = websocket.TextMessage
			}
			_ = con.SetWriteDeadline(time.Now().Add(writeWait))
			if err := con.WriteMessage(typ, data); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		case <-ticker.C:
			if err := con.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}

			if time.Since(lastPong) > pongWait {
				return fmt.Errorf("connection stalling")
			}
		}
	}
}

// pump reads terminal output into output until the terminal closes
func pump(ctx context.Context, cancel context.CancelFunc, term Terminal, output chan<- []byte, logger zerolog.Logger) {
	defer cancel()

	for {
		buf := make([]byte, readSize)
		n, err := term.Read(buf)
		if n > 0 {
			select {
			case <-ctx.Done():
				return
			case output <- buf[:n]:
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Debug().Err(err).Msg("terminal read failed")
			}
			return
		}
	}
}

// receive forwards client frames to the terminal. A text frame holding a resize
// request changes the window size instead of being typed.
func receive(ctx context.Context, cancel context.CancelFunc, con *websocket.Conn, term Terminal, logger zerolog.Logger) {
	defer cancel()

	for {
		_, data, err := con.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("terminal client read failed")
			}
			return
		}

		if ctx.Err() != nil {
			return
		}

		var req resize
		if len(data) > 0 && data[0] == '{' && json.Unmarshal(data, &req) == nil && req.Type == "resize" {
			if err := term.Resize(req.Rows, req.Cols); err != nil {
				logger.Debug().Err(err).Msg("failed to resize terminal")
			}
			continue
		}

		if _, err := term.Write(data); err != nil {
			logger.Debug().Err(err).Msg("terminal write failed")
			return
		}
	}
}
