package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"LevelScope/internal/domain/models"
	svcmetrics "LevelScope/internal/service/metrics"
	"LevelScope/internal/usecase"
	xhttp "LevelScope/pkg/http"
	xlogger "LevelScope/pkg/logger"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamMessage is one frame on the backtest stream: a trade as it closes,
// then a final report or error.
type StreamMessage struct {
	Type   string                  `json:"type"`
	Trade  *models.Trade           `json:"trade,omitempty"`
	Report *usecase.BacktestReport `json:"report,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Stream runs a backtest and pushes each closed trade over a websocket.
// Parameters come from the query string; the run stops when the client goes away.
func (h *BacktestHandler) Stream(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, aerr := backtestParams(req)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()
	svcmetrics.ActiveStreams.Inc()
	defer svcmetrics.ActiveStreams.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.runTimeout)
	defer cancel()
	go func() {
		// any read error means the peer closed
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	var writeErr error
	send := func(m StreamMessage) {
		if writeErr != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if writeErr = conn.WriteJSON(m); writeErr != nil {
			cancel()
		}
	}

	rep, runErr := h.backtest.Run(ctx, params, func(t models.Trade) {
		send(StreamMessage{Type: "trade", Trade: &t})
	})
	switch {
	case rep != nil:
		send(StreamMessage{Type: "report", Report: rep})
	case runErr != nil:
		send(StreamMessage{Type: "error", Error: toAppError(runErr).Message})
	}
	if writeErr != nil {
		h.logger.Debug("stream closed by peer", xlogger.Error(writeErr))
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait))
	return nil
}
