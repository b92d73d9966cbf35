package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/livedesk/internal/broker"
	"github.com/Rrens/livedesk/internal/domain"
)

// connPair upgrades a real websocket and hands back both ends plus the
// server-side client wrapper.
func connPair(t *testing.T) (*Client, *websocket.Conn) {
	t.Helper()

	serverSide := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		g := &Gateway{broker: broker.New(), handlerTimeout: time.Second}
		serverSide <- newClient(conn, g, domain.Principal{Kind: domain.PrincipalCustomer})
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dialer, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dialer.Close() })

	return <-serverSide, dialer
}

func TestClient_EnqueueDeliversInOrder(t *testing.T) {
	client, peer := connPair(t)
	go client.writePump()

	for _, event := range []string{"a", "b", "c"} {
		assert.True(t, client.Enqueue(broker.NewEnvelope(event, nil), false))
	}

	for _, want := range []string{"a", "b", "c"} {
		var env broker.Envelope
		peer.SetReadDeadline(time.Now().Add(2 * time.Second))
		require.NoError(t, peer.ReadJSON(&env))
		assert.Equal(t, want, env.Event)
		assert.NotZero(t, env.Timestamp)
	}
}

func TestClient_EnqueueUnderPressure(t *testing.T) {
	t.Run("droppable frames are discarded, connection survives", func(t *testing.T) {
		client, _ := connPair(t)
		// No writePump: the buffer fills and stays full.
		for i := 0; i < sendBufferSize; i++ {
			client.Enqueue(broker.NewEnvelope("fill", nil), false)
		}

		assert.True(t, client.Enqueue(broker.NewEnvelope("typing", nil), true))
		select {
		case <-client.done:
			t.Fatal("droppable overflow must not close the connection")
		default:
		}
	})

	t.Run("critical frame overflow closes the connection", func(t *testing.T) {
		client, _ := connPair(t)
		for i := 0; i < sendBufferSize; i++ {
			client.Enqueue(broker.NewEnvelope("fill", nil), false)
		}

		assert.False(t, client.Enqueue(broker.NewEnvelope("chat:message", nil), false))
		select {
		case <-client.done:
		default:
			t.Fatal("critical overflow must close the connection")
		}
	})

	t.Run("closed client rejects everything", func(t *testing.T) {
		client, _ := connPair(t)
		client.close()
		assert.False(t, client.Enqueue(broker.NewEnvelope("x", nil), true))
	})
}

func TestClient_ReadPumpDropsMalformedFrames(t *testing.T) {
	client, peer := connPair(t)
	go client.readPump()

	require.NoError(t, peer.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, peer.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))

	select {
	case <-client.done:
		t.Fatal("malformed frame must not close the connection")
	case <-time.After(200 * time.Millisecond):
	}

	peer.Close()
	select {
	case <-client.done:
	case <-time.After(2 * time.Second):
		t.Fatal("transport close must end the read pump")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClient_IdleTimeoutSendsCloseCode(t *testing.T) {
	client, peer := connPair(t)

	client.readFailed(timeoutErr{})

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := peer.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, closeIdleTimeout, ce.Code)
}

func TestClient_BindSession(t *testing.T) {
	client, _ := connPair(t)

	p := client.Principal()
	assert.Nil(t, p.SessionID)

	sessionID := uuid.New()
	client.bindSession(sessionID, "tok")

	p = client.Principal()
	require.NotNil(t, p.SessionID)
	assert.Equal(t, sessionID, *p.SessionID)
	assert.True(t, p.Owns(sessionID))
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/cs?token=querytok", nil)
	assert.Equal(t, "querytok", bearerToken(r))

	r.Header.Set("Authorization", "Bearer headertok")
	assert.Equal(t, "headertok", bearerToken(r))
}
