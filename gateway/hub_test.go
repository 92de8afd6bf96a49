package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// A client still connected when the hub shuts down must not leave its read
// goroutine stuck on the unregister handoff.
func TestReadPumpUnblocksAfterHubStop(t *testing.T) {
	h := newHub(nil)
	h.stop()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	pumpDone := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade returned error: %v", err)
			return
		}
		client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 1)}
		go func() {
			client.readPump()
			close(pumpDone)
		}()
	}))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("websocket dial returned error: %v", err)
	}
	_ = conn.Close()

	select {
	case <-pumpDone:
	case <-time.After(3 * time.Second):
		t.Fatal("readPump still blocked after hub stop")
	}
}

func TestHubStopIsIdempotent(t *testing.T) {
	h := newHub(nil)
	h.stop()
	h.stop()
}
