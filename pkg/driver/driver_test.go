package driver

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/playernsd/internal/config"
	"github.com/samsamfire/playernsd/internal/wire"
	"github.com/samsamfire/playernsd/pkg/client"
	"github.com/samsamfire/playernsd/pkg/driver/faketest"
)

// fakeDaemon is a minimal playernsd stand-in driven directly by the test,
// mirroring pkg/client's engine_test.go fakeServer.
type fakeDaemon struct {
	ln   net.Listener
	conn net.Conn
	r    *bufio.Reader
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &fakeDaemon{ln: ln}
}

func (d *fakeDaemon) addr() (string, string) {
	host, port, _ := net.SplitHostPort(d.ln.Addr().String())
	return host, port
}

func (d *fakeDaemon) accept(t *testing.T) {
	t.Helper()
	conn, err := d.ln.Accept()
	require.NoError(t, err)
	d.conn = conn
	d.r = bufio.NewReader(conn)
}

func (d *fakeDaemon) send(t *testing.T, line string) {
	t.Helper()
	_, err := d.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (d *fakeDaemon) recvLine(t *testing.T) string {
	t.Helper()
	line, err := d.r.ReadString('\n')
	require.NoError(t, err)
	return line[:len(line)-1]
}

func (d *fakeDaemon) close() {
	if d.conn != nil {
		d.conn.Close()
	}
	d.ln.Close()
}

func startAndRegister(t *testing.T, daemon *fakeDaemon, drv *Driver, id string) {
	t.Helper()
	go func() {
		daemon.accept(t)
		daemon.send(t, "greetings srv playernsd 0001")
		daemon.recvLine(t)
		daemon.send(t, "registered")
	}()
	require.NoError(t, drv.engine.Connect(context.Background()))
	require.Eventually(t, func() bool { return drv.engine.State() == client.Registered }, time.Second, 5*time.Millisecond)
	_ = id
}

func TestSelfIDShortCircuitNeverTouchesWire(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()

	mw := faketest.New()
	host, port := daemon.addr()
	drv, err := New(Config{ID: "bot7", Host: host, Port: port}, mw)
	require.NoError(t, err)
	startAndRegister(t, daemon, drv, "bot7")
	defer drv.Close()

	resp, err := drv.Dispatch(Request{Subtype: SubtypeReqPropGet, Key: "self.id"})
	require.NoError(t, err)
	assert.Equal(t, "bot7", resp.Property.Value)

	// Nothing may arrive on the daemon side of the socket.
	require.NoError(t, daemon.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, err = daemon.r.ReadByte()
	assert.Error(t, err)
}

func TestListClientsDispatch(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()

	mw := faketest.New()
	host, port := daemon.addr()
	drv, err := New(Config{ID: "bot1", Host: host, Port: port}, mw)
	require.NoError(t, err)
	startAndRegister(t, daemon, drv, "bot1")
	defer drv.Close()

	go func() {
		daemon.recvLine(t) // listclients
		daemon.send(t, "listclients bot1 bot2")
	}()

	resp, err := drv.Dispatch(Request{Subtype: SubtypeReqListClients})
	require.NoError(t, err)
	assert.Equal(t, []wire.ClientID{"bot1", "bot2"}, resp.ClientList)

	encoded := resp.ClientListBytes()
	require.Len(t, encoded, len(resp.ClientList)*wire.ClientIDWidth)
	for i, id := range resp.ClientList {
		slot := encoded[i*wire.ClientIDWidth : (i+1)*wire.ClientIDWidth]
		assert.Equal(t, id, string(bytes.TrimRight(slot, "\x00")))
	}
}

func TestClientListBytesPadsAndTruncates(t *testing.T) {
	long := make([]byte, wire.ClientIDWidth+10)
	for i := range long {
		long[i] = 'x'
	}
	resp := Response{ClientList: []wire.ClientID{"bot1", string(long)}}

	encoded := resp.ClientListBytes()
	require.Len(t, encoded, 2*wire.ClientIDWidth)

	first := encoded[:wire.ClientIDWidth]
	assert.Equal(t, "bot1", string(bytes.TrimRight(first, "\x00")))
	for _, b := range first[len("bot1"):] {
		assert.Equal(t, byte(0), b)
	}

	second := encoded[wire.ClientIDWidth:]
	assert.Equal(t, byte(0), second[wire.ClientIDWidth-1])
	assert.Equal(t, string(long[:wire.ClientIDWidth-1]), string(second[:wire.ClientIDWidth-1]))
}

func TestCmdSendBroadcastVsTargeted(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()

	mw := faketest.New()
	host, port := daemon.addr()
	drv, err := New(Config{ID: "bot1", Host: host, Port: port}, mw)
	require.NoError(t, err)
	startAndRegister(t, daemon, drv, "bot1")
	defer drv.Close()

	_, err = drv.Dispatch(Request{Subtype: SubtypeCmdSend, Target: "", Text: "hi all"})
	require.NoError(t, err)
	assert.Equal(t, "msgtext", daemon.recvLine(t))
	assert.Equal(t, "hi all", daemon.recvLine(t))

	_, err = drv.Dispatch(Request{Subtype: SubtypeCmdSend, Target: "bot2", Text: "hi bot2"})
	require.NoError(t, err)
	assert.Equal(t, "msgtext bot2", daemon.recvLine(t))
	assert.Equal(t, "hi bot2", daemon.recvLine(t))
}

func TestClientIDInUseRetriesWithSuffix(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()

	mw := faketest.New()
	host, port := daemon.addr()
	drv, err := New(Config{ID: "bot1", Host: host, Port: port}, mw)
	require.NoError(t, err)

	go func() {
		daemon.accept(t)
		daemon.send(t, "greetings srv playernsd 0001")
		assert.Equal(t, "greetings bot1 playernsd 0001", daemon.recvLine(t))
		daemon.send(t, "error clientidinuse ")
		assert.Equal(t, "greetings bot1_ playernsd 0001", daemon.recvLine(t))
		daemon.send(t, "registered")
	}()

	require.NoError(t, drv.engine.Connect(context.Background()))
	require.Eventually(t, func() bool { return drv.engine.State() == client.Registered }, time.Second, 5*time.Millisecond)
	defer drv.Close()
}

func TestAutoReconnectAfterUnplannedDisconnect(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()

	mw := faketest.New()
	host, port := daemon.addr()
	drv, err := New(Config{ID: "bot1", Host: host, Port: port}, mw)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- drv.Run(ctx) }()

	daemon.accept(t)
	daemon.send(t, "greetings srv playernsd 0001")
	assert.Equal(t, "greetings bot1 playernsd 0001", daemon.recvLine(t))
	daemon.send(t, "registered")
	require.Eventually(t, func() bool { return drv.engine.State() == client.Registered }, time.Second, 5*time.Millisecond)

	// Simulate an unplanned disconnect from the daemon side.
	daemon.conn.Close()
	require.Eventually(t, func() bool { return drv.engine.State() == client.Disconnected }, time.Second, 5*time.Millisecond)

	// The driver should redial and redo the handshake on its own.
	daemon.accept(t)
	daemon.send(t, "greetings srv playernsd 0001")
	assert.Equal(t, "greetings bot1 playernsd 0001", daemon.recvLine(t))
	daemon.send(t, "registered")
	require.Eventually(t, func() bool { return drv.engine.State() == client.Registered }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-runErr)
}

func TestPositionForwardingRebasesOnLocalizationOrigin(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()

	mw := faketest.New()
	host, port := daemon.addr()
	origin := &config.WorldOrigin{LocalizationOrigin: config.Origin{X: 1, Y: 2, A: 0.5}}
	drv, err := New(Config{ID: "bot1", Host: host, Port: port, Origin: origin}, mw)
	require.NoError(t, err)
	startAndRegister(t, daemon, drv, "bot1")
	defer drv.Close()

	_, err = drv.Dispatch(Request{Subtype: SubtypeDataPosition2D, Position: Position2D{X: 4, Y: 6, A: 1.5}})
	require.NoError(t, err)

	assert.Equal(t, "propset self.position 3 4 1", daemon.recvLine(t))
}

func TestReceiveTextPublishesToMiddleware(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()

	mw := faketest.New()
	host, port := daemon.addr()
	drv, err := New(Config{ID: "bot1", Host: host, Port: port}, mw)
	require.NoError(t, err)
	startAndRegister(t, daemon, drv, "bot1")
	defer drv.Close()

	daemon.send(t, "msgtext bot2")
	daemon.send(t, "hello there")

	require.Eventually(t, func() bool { return mw.PublishedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello there", string(mw.Published[0].Payload))
	assert.Equal(t, SubtypeDataRecv, mw.Published[0].Subtype)
}
