package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/retrochat/retrovoice/internal/relay"
	"github.com/retrochat/retrovoice/pkg/logger"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type RelayHandler struct {
	srv *relay.Server
}

func NewRelayHandler(srv *relay.Server) *RelayHandler {
	return &RelayHandler{srv: srv}
}

func (h *RelayHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.srv.Stats())
}

// StreamEvents pushes relay call events (waiting/paired/ended/expired) over
// a websocket until the client goes away.
func (h *RelayHandler) StreamEvents(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Errorf("upgrade websocket failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.srv.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				logger.Log.Warnf("write relay event failed: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
