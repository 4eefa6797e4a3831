package proxy

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/playernsd/internal/wire"
	"github.com/samsamfire/playernsd/pkg/client"
)

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

func (d *fakeDaemon) addr() string { return d.ln.Addr().String() }

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

func newRegisteredProxy(t *testing.T, daemon *fakeDaemon, id string) *Proxy {
	t.Helper()
	eng := client.NewEngine(daemon.addr(), client.NoopHandler{})
	go func() {
		daemon.accept(t)
		daemon.send(t, "greetings srv playernsd 0001")
		daemon.recvLine(t)
		daemon.send(t, "registered")
	}()
	require.NoError(t, eng.Connect(context.Background()))
	require.Eventually(t, func() bool { return eng.State() == client.Greeting }, time.Second, 5*time.Millisecond)
	require.NoError(t, eng.Register(id))
	require.Eventually(t, func() bool { return eng.State() == client.Registered }, time.Second, 5*time.Millisecond)
	return New(eng)
}

func TestSendMessageBroadcastAndTargeted(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()
	p := newRegisteredProxy(t, daemon, "bot1")

	require.NoError(t, p.SendMessage("", "hi all"))
	assert.Equal(t, "msgtext", daemon.recvLine(t))
	assert.Equal(t, "hi all", daemon.recvLine(t))

	require.NoError(t, p.SendMessage("bot2", "hi bot2"))
	assert.Equal(t, "msgtext bot2", daemon.recvLine(t))
	assert.Equal(t, "hi bot2", daemon.recvLine(t))
}

func TestDeliverAndReceiveMessage(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()
	p := newRegisteredProxy(t, daemon, "bot1")

	assert.Equal(t, 0, p.ReceiveMessageCount())
	p.Deliver("bot2", []byte("hello"))
	assert.Equal(t, 1, p.ReceiveMessageCount())

	msg, ok := p.ReceiveMessage()
	require.True(t, ok)
	assert.Equal(t, wire.ClientID("bot2"), msg.Source)
	assert.Equal(t, "hello", string(msg.Payload))

	_, ok = p.ReceiveMessage()
	assert.False(t, ok)
}

func TestGetPropertyIsAliasForRequestProperty(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()
	p := newRegisteredProxy(t, daemon, "bot1")

	go func() {
		daemon.recvLine(t)
		daemon.send(t, "propval map.name the big room")
	}()

	pv, err := p.GetProperty("map.name")
	require.NoError(t, err)
	assert.Equal(t, "the big room", pv.Value)
}

func TestGetClientListIsAliasForRequestClientList(t *testing.T) {
	daemon := newFakeDaemon(t)
	defer daemon.close()
	p := newRegisteredProxy(t, daemon, "bot1")

	go func() {
		daemon.recvLine(t)
		daemon.send(t, "listclients bot1 bot2")
	}()

	ids, err := p.GetClientList()
	require.NoError(t, err)
	assert.Equal(t, []wire.ClientID{"bot1", "bot2"}, ids)
}
