package client

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/playernsd/internal/wire"
)

// recordingHandler captures every callback for assertion, guarded by a
// mutex since callbacks arrive on the reader goroutine.
type recordingHandler struct {
	mu          sync.Mutex
	states      []ConnectionState
	errors      []wire.ServerError
	texts       []string
	bins        [][]byte
	clientLists [][]wire.ClientID
	props       []PropertyView
}

func (h *recordingHandler) StateChanged(s ConnectionState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, s)
}

func (h *recordingHandler) ErrorRaised(kind wire.ServerError, detail string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, kind)
}

func (h *recordingHandler) ReceiveText(source wire.ClientID, body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.texts = append(h.texts, body)
}

func (h *recordingHandler) ReceiveBinary(source wire.ClientID, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := append([]byte(nil), payload...)
	h.bins = append(h.bins, cp)
}

func (h *recordingHandler) ClientListResponse(ids []wire.ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clientLists = append(h.clientLists, ids)
}

func (h *recordingHandler) PropertyValue(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.props = append(h.props, PropertyView{Key: key, Value: value})
}

func (h *recordingHandler) snapshotStates() []ConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ConnectionState(nil), h.states...)
}

// fakeServer is a minimal playernsd stand-in for engine integration tests,
// mirroring how the teacher's gateway HTTP tests use httptest.NewServer to
// stand in for a peer.
type fakeServer struct {
	ln   net.Listener
	conn net.Conn
	r    *bufio.Reader
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &fakeServer{ln: ln}
}

func (s *fakeServer) addr() string {
	return s.ln.Addr().String()
}

func (s *fakeServer) accept(t *testing.T) {
	t.Helper()
	conn, err := s.ln.Accept()
	require.NoError(t, err)
	s.conn = conn
	s.r = bufio.NewReader(conn)
}

func (s *fakeServer) send(t *testing.T, line string) {
	t.Helper()
	_, err := s.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (s *fakeServer) recvLine(t *testing.T) string {
	t.Helper()
	line, err := s.r.ReadString('\n')
	require.NoError(t, err)
	return line[:len(line)-1]
}

func (s *fakeServer) close() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.ln.Close()
}

func TestHandshakeAndRegistration(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	h := &recordingHandler{}
	eng := NewEngine(srv.addr(), h)

	var acceptWG sync.WaitGroup
	acceptWG.Add(1)
	go func() {
		defer acceptWG.Done()
		srv.accept(t)
		srv.send(t, "greetings srv playernsd 0001")
		assert.Equal(t, "greetings bot1 playernsd 0001", srv.recvLine(t))
		srv.send(t, "registered")
	}()

	require.NoError(t, eng.Connect(context.Background()))
	acceptWG.Wait()

	require.Eventually(t, func() bool {
		return eng.State() == Greeting
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, eng.Register("bot1"))

	require.Eventually(t, func() bool {
		return eng.State() == Registered
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []ConnectionState{Connected, Greeting, WaitingRegistration, Registered}, h.snapshotStates())
	require.NoError(t, eng.Close())
}

func TestIDConflictRecovery(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	h := &recordingHandler{}
	eng := NewEngine(srv.addr(), h)

	go func() {
		srv.accept(t)
		srv.send(t, "greetings srv playernsd 0001")
		assert.Equal(t, "greetings bot1 playernsd 0001", srv.recvLine(t))
		srv.send(t, "error clientidinuse ")
		assert.Equal(t, "greetings bot1_ playernsd 0001", srv.recvLine(t))
		srv.send(t, "registered")
	}()

	require.NoError(t, eng.Connect(context.Background()))
	require.Eventually(t, func() bool { return eng.State() == Greeting }, time.Second, 5*time.Millisecond)
	require.NoError(t, eng.Register("bot1"))

	require.Eventually(t, func() bool { return eng.State() == Greeting }, time.Second, 5*time.Millisecond)
	require.NoError(t, eng.Register("bot1_"))

	require.Eventually(t, func() bool { return eng.State() == Registered }, time.Second, 5*time.Millisecond)
	require.NoError(t, eng.Close())
}

func registerEngine(t *testing.T, srv *fakeServer, eng *Engine, id string) {
	t.Helper()
	go func() {
		srv.accept(t)
		srv.send(t, "greetings srv playernsd 0001")
		srv.recvLine(t)
		srv.send(t, "registered")
	}()
	require.NoError(t, eng.Connect(context.Background()))
	require.Eventually(t, func() bool { return eng.State() == Greeting }, time.Second, 5*time.Millisecond)
	require.NoError(t, eng.Register(id))
	require.Eventually(t, func() bool { return eng.State() == Registered }, time.Second, 5*time.Millisecond)
}

func TestBinaryRoundTrip(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	h := &recordingHandler{}
	eng := NewEngine(srv.addr(), h)
	registerEngine(t, srv, eng, "bot1")
	defer eng.Close()

	payload := []byte{0x00, 'A', '\n', '\n', 0xFF}
	require.NoError(t, eng.SendBinary("bot2", payload))

	line := srv.recvLine(t)
	assert.Equal(t, "msgbin bot2 5", line)
	got := make([]byte, len(payload))
	_, err := io.ReadFull(srv.r, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestListClientsRendezvous(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	h := &recordingHandler{}
	eng := NewEngine(srv.addr(), h)
	registerEngine(t, srv, eng, "bot1")
	defer eng.Close()

	go func() {
		assert.Equal(t, "listclients", srv.recvLine(t))
		srv.send(t, "listclients bot1 bot2 bot3")
	}()

	ids, err := eng.RequestClientList()
	require.NoError(t, err)
	assert.Equal(t, []wire.ClientID{"bot1", "bot2", "bot3"}, ids)
}

func TestPropertyGetGoesToWire(t *testing.T) {
	// self.id short-circuit lives in pkg/driver, not the engine; this test
	// just documents that PropertyGet always goes to the wire at this layer.
	srv := newFakeServer(t)
	defer srv.close()

	h := &recordingHandler{}
	eng := NewEngine(srv.addr(), h)
	registerEngine(t, srv, eng, "bot1")
	defer eng.Close()

	go func() {
		assert.Equal(t, "propget map.name", srv.recvLine(t))
		srv.send(t, "propval map.name the big room")
	}()

	pv, err := eng.PropertyGet("map.name")
	require.NoError(t, err)
	assert.Equal(t, "map.name", pv.Key)
	assert.Equal(t, "the big room", pv.Value)
}

func TestConnectionLossAbortsRendezvous(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	h := &recordingHandler{}
	eng := NewEngine(srv.addr(), h)
	registerEngine(t, srv, eng, "bot1")

	go func() {
		srv.recvLine(t) // listclients request
		srv.conn.Close()
	}()

	_, err := eng.RequestClientList()
	assert.ErrorIs(t, err, ErrConnectionLost)

	require.Eventually(t, func() bool { return eng.State() == Disconnected }, time.Second, 5*time.Millisecond)
}

func TestPingAnsweredWithPong(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.close()

	h := &recordingHandler{}
	eng := NewEngine(srv.addr(), h)
	registerEngine(t, srv, eng, "bot1")
	defer eng.Close()

	srv.send(t, "ping")
	assert.Equal(t, "pong", srv.recvLine(t))
}
