package sinks

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/usnistgov/adcsim"
)

// WebSocketPath is the URL path at which the WebSocket sink accepts clients.
const WebSocketPath = "/samples"

// writeWait bounds the time to send one message to a WebSocket client.
const writeWait = 2 * time.Second

// WebSocket serves the sample stream to one WebSocket client at a time. Binary
// encoding sends binary messages, text encoding sends text messages. A second
// client is refused with 503 while the first is connected. Samples written
// while no client is connected are dropped.
type WebSocket struct {
	encoder
	ln       net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	client *websocket.Conn
}

// NewWebSocket serves clients on ln. The sink owns ln.
func NewWebSocket(ln net.Listener, enc adcsim.Encoding) *WebSocket {
	ws := &WebSocket{
		encoder: encoder{enc: enc},
		ln:      ln,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, ws.serveClient)
	ws.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			adcsim.ProblemLogger.Printf("WebSocket sink server stopped: %v", err)
		}
	}()
	return ws
}

// Addr returns the listening address.
func (ws *WebSocket) Addr() net.Addr { return ws.ln.Addr() }

// Connected tells whether a client is currently attached.
func (ws *WebSocket) Connected() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.client != nil
}

func (ws *WebSocket) serveClient(w http.ResponseWriter, r *http.Request) {
	ws.mu.Lock()
	busy := ws.client != nil
	ws.mu.Unlock()
	if busy {
		http.Error(w, "another client is receiving samples", http.StatusServiceUnavailable)
		return
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.mu.Lock()
	if ws.client != nil {
		ws.mu.Unlock()
		conn.Close()
		return
	}
	ws.client = conn
	ws.mu.Unlock()
	adcsim.UpdateLogger.Printf("WebSocket client connected from %v", conn.RemoteAddr())

	// Reading is needed to process control frames and to notice the client leaving.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	ws.drop(conn)
}

// drop forgets conn if it is the current client, and closes it.
func (ws *WebSocket) drop(conn *websocket.Conn) {
	ws.mu.Lock()
	if ws.client == conn {
		ws.client = nil
	}
	ws.mu.Unlock()
	conn.Close()
}

// Write sends one sample to the client, if there is one.
func (ws *WebSocket) Write(s adcsim.Sample) error {
	ws.mu.Lock()
	conn := ws.client
	ws.mu.Unlock()
	if conn == nil {
		return nil
	}
	b, err := ws.message(s)
	if err != nil {
		return err
	}
	msgType := websocket.TextMessage
	if ws.enc == adcsim.BinaryEncoding {
		msgType = websocket.BinaryMessage
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(msgType, b); err != nil {
		adcsim.UpdateLogger.Printf("WebSocket client %v dropped: %v", conn.RemoteAddr(), err)
		ws.drop(conn)
	}
	return nil
}

// Close stops the server and disconnects the client.
func (ws *WebSocket) Close() error {
	err := ws.server.Close()
	ws.mu.Lock()
	conn := ws.client
	ws.client = nil
	ws.mu.Unlock()
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
	}
	return err
}
