package transport_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/transport"
)

// fakeAIServer accepts one websocket connection, pushes a canned audio
// message, and records everything the client sends.
type fakeAIServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	binary      [][]byte
	text        [][]byte
	connArrived chan *websocket.Conn
}

func newFakeAIServer(t *testing.T) *fakeAIServer {
	f := &fakeAIServer{t: t, connArrived: make(chan *websocket.Conn, 1)}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAIServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.connArrived <- conn

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.mu.Lock()
		if msgType == websocket.BinaryMessage {
			f.binary = append(f.binary, data)
		} else {
			f.text = append(f.text, data)
		}
		f.mu.Unlock()
	}
}

func (f *fakeAIServer) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeAIServer) sentBinary() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.binary))
	copy(out, f.binary)
	return out
}

func (f *fakeAIServer) sentText() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.text))
	copy(out, f.text)
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Monitor.ConnectAttempts = 2
	cfg.Monitor.ConnectBackoffBaseMs = 10
	cfg.Session.ConnectTimeoutSeconds = 2
	return cfg
}

func TestAISocketConnectAndReceiveAudio(t *testing.T) {
	server := newFakeAIServer(t)
	sock := transport.NewAISocket(zap.NewNop(), testConfig())
	defer sock.Close()

	require.NoError(t, sock.Connect(context.Background(), server.url()))
	assert.Equal(t, transport.StateConnected, sock.State())

	serverConn := <-server.connArrived
	payload := base64.StdEncoding.EncodeToString([]byte{0x10, 0x20})
	msg := `{"type":"audio","format":"pcm","encoding":"int16le","sample_rate":24000,"channels":1,"data":"` + payload + `"}`
	require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, []byte(msg)))

	select {
	case chunk := <-sock.Chunks():
		assert.Equal(t, []byte{0x10, 0x20}, chunk.Payload)
		assert.Equal(t, 24000, chunk.SampleRate)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audio chunk")
	}
}

func TestAISocketSendPCMAndMarker(t *testing.T) {
	server := newFakeAIServer(t)
	sock := transport.NewAISocket(zap.NewNop(), testConfig())
	defer sock.Close()

	require.NoError(t, sock.Connect(context.Background(), server.url()))
	<-server.connArrived

	pcm := []byte{0, 0, 0, 0, 1, 0}
	require.NoError(t, sock.SendPCM(pcm))
	require.NoError(t, sock.SendStartInterview(time.Now()))

	require.Eventually(t, func() bool {
		return len(server.sentBinary()) == 1 && len(server.sentText()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, pcm, server.sentBinary()[0])
	assert.Contains(t, string(server.sentText()[0]), `"start_interview"`)
	assert.Contains(t, string(server.sentText()[0]), `"user_ready":true`)
}

func TestAISocketSendWhileDisconnected(t *testing.T) {
	sock := transport.NewAISocket(zap.NewNop(), testConfig())

	err := sock.SendPCM([]byte{1, 2})
	require.Error(t, err)

	var sendErr *transport.SendError
	assert.ErrorAs(t, err, &sendErr)
}

func TestAISocketDisconnectIsSurfaced(t *testing.T) {
	server := newFakeAIServer(t)
	sock := transport.NewAISocket(zap.NewNop(), testConfig())
	defer sock.Close()

	require.NoError(t, sock.Connect(context.Background(), server.url()))
	serverConn := <-server.connArrived

	require.NoError(t, serverConn.Close())

	select {
	case <-sock.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close event")
	}
	assert.Equal(t, transport.StateError, sock.State())
}

func TestAISocketConnectFailureAfterRetries(t *testing.T) {
	sock := transport.NewAISocket(zap.NewNop(), testConfig())

	err := sock.Connect(context.Background(), "ws://127.0.0.1:1/ai")
	require.Error(t, err)

	var chanErr *transport.ChannelError
	assert.ErrorAs(t, err, &chanErr)
	assert.Equal(t, transport.StateError, sock.State())
}

func TestRecordingSocketRetryAfterFailure(t *testing.T) {
	sock := transport.NewRecordingSocket(zap.NewNop(), testConfig())

	require.Error(t, sock.Connect(context.Background(), "ws://127.0.0.1:1/rec"))
	assert.Equal(t, transport.StateError, sock.State())

	server := newFakeAIServer(t)
	require.NoError(t, sock.Connect(context.Background(), server.url()))
	assert.Equal(t, transport.StateConnected, sock.State())
	defer sock.Close()

	require.NoError(t, sock.SendSegment([]byte{0xAA, 0xBB}))
	require.Eventually(t, func() bool {
		return len(server.sentBinary()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte{0xAA, 0xBB}, server.sentBinary()[0])
}
