package display

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	thermostat "github.com/alittlebrighter/homekit-thermostat"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 10
)

// touch is a message from the kiosk page.
type touch struct {
	Type   string `json:"type"`
	Button string `json:"button,omitempty"`
}

type envelope struct {
	Type string   `json:"type"`
	Data Snapshot `json:"data"`
}

var upgrader = websocket.Upgrader{
	// the kiosk browser runs on the device itself
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves the panel to the kiosk browser.
type Server struct {
	panel   *Panel
	metrics http.Handler
	log     *zap.SugaredLogger
}

// NewServer builds the kiosk server. metrics may be nil.
func NewServer(panel *Panel, metrics http.Handler, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{panel: panel, metrics: metrics, log: log}
}

func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", s.index)
	router.GET("/health", s.health)
	router.GET("/ws", s.wsConnect)

	api := router.Group("/api")
	{
		api.GET("/screen", s.getScreen)
		api.POST("/buttons/:button", s.pressButton)
		api.POST("/reconnect", s.pressReconnect)
	}

	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}
	return router
}

// Run serves on addr until ctx ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes()}

	errs := make(chan error, 1)
	go func() {
		s.log.Infow("display server listening", "addr", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

func (s *Server) getScreen(c *gin.Context) {
	c.JSON(http.StatusOK, s.panel.Snapshot())
}

func parseButton(name string) (thermostat.Button, bool) {
	switch name {
	case thermostat.ButtonIncrease.String():
		return thermostat.ButtonIncrease, true
	case thermostat.ButtonDecrease.String():
		return thermostat.ButtonDecrease, true
	}
	return 0, false
}

func (s *Server) pressButton(c *gin.Context) {
	b, ok := parseButton(c.Param("button"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown button"})
		return
	}
	if !s.panel.Press(b) {
		c.JSON(http.StatusConflict, gin.H{"error": "buttons disabled"})
		return
	}
	c.JSON(http.StatusOK, s.panel.Snapshot())
}

func (s *Server) pressReconnect(c *gin.Context) {
	if !s.panel.PressReconnect() {
		c.JSON(http.StatusConflict, gin.H{"error": "reconnect not offered"})
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Errorw("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	updates, cancel := s.panel.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go s.readTouches(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.send(conn, s.panel.Snapshot()); err != nil {
		s.log.Infow("ws initial write failed", "err", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case snap := <-updates:
			if err := s.send(conn, snap); err != nil {
				s.log.Infow("ws write failed", "err", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, snap Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(envelope{Type: "screen", Data: snap})
}

func (s *Server) readTouches(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		var t touch
		if err := conn.ReadJSON(&t); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Infow("ws read closed", "err", err)
			}
			return
		}

		switch t.Type {
		case "button":
			if b, ok := parseButton(t.Button); ok {
				s.panel.Press(b)
			}
		case "reconnect":
			s.panel.PressReconnect()
		default:
			s.log.Debugw("unknown touch", "type", t.Type)
		}
	}
}
