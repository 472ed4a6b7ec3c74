package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readResponses(t *testing.T, conn *websocket.Conn) []WebSocketDetectResponse {
	t.Helper()
	var responses []WebSocketDetectResponse
	deadline := time.Now().Add(10 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var resp WebSocketDetectResponse
		require.NoError(t, json.Unmarshal(data, &resp))
		responses = append(responses, resp)
		if resp.Status == "completed" || resp.Status == "error" {
			return responses
		}
	}
}

func TestWebSocketDetect(t *testing.T) {
	s := testServer(t)
	conn := dialTestServer(t, s)

	req := WebSocketDetectRequest{Type: "detect", Image: encodePNG(t, 200, 100)}
	require.NoError(t, conn.WriteJSON(req))

	responses := readResponses(t, conn)
	final := responses[len(responses)-1]
	assert.Equal(t, "completed", final.Status)
	assert.InDelta(t, 1.0, final.Progress, 1e-9)
	assert.NotNil(t, final.Result)

	// per-crop progress arrives before completion: initial ack + 2 crops + final
	var progressEvents int
	for _, r := range responses[:len(responses)-1] {
		if r.CropsTotal > 0 {
			progressEvents++
			assert.Equal(t, 2, r.CropsTotal)
		}
	}
	assert.Equal(t, 2, progressEvents)
}

func TestWebSocketInvalidRequestType(t *testing.T) {
	s := testServer(t)
	conn := dialTestServer(t, s)

	require.NoError(t, conn.WriteJSON(WebSocketDetectRequest{Type: "bogus"}))
	responses := readResponses(t, conn)
	assert.Equal(t, "error", responses[len(responses)-1].Status)
}

func TestWebSocketBadImage(t *testing.T) {
	s := testServer(t)
	conn := dialTestServer(t, s)

	require.NoError(t, conn.WriteJSON(WebSocketDetectRequest{Type: "detect", Image: []byte("junk")}))
	responses := readResponses(t, conn)
	final := responses[len(responses)-1]
	assert.Equal(t, "error", final.Status)
	assert.Contains(t, final.Error, "decode")
}
