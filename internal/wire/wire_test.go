package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	for token, want := range namesToCommand {
		got := CommandFromToken(token)
		assert.Equal(t, want, got)
		assert.Equal(t, token, got.String())
	}
	assert.Equal(t, CmdUnknown, CommandFromToken("notarealcommand"))
}

func TestServerErrorFromToken(t *testing.T) {
	assert.Equal(t, ErrClientIDInUse, ServerErrorFromToken("clientidinuse"))
	assert.Equal(t, ErrUnknown, ServerErrorFromToken("somethingnew"))
}

func TestParseGreeting(t *testing.T) {
	h, err := ParseHeader("greetings rover1 playernsd 0001")
	require.NoError(t, err)
	require.Equal(t, CmdGreetings, h.Command)

	g, err := ParseGreeting(h)
	require.NoError(t, err)
	assert.Equal(t, ClientID("rover1"), g.ClientID)
	assert.Equal(t, "0001", g.Version)
}

func TestParsePropValPreservesEmbeddedSpaces(t *testing.T) {
	h, err := ParseHeader("propval map.name the big room b")
	require.NoError(t, err)
	require.Equal(t, CmdPropVal, h.Command)

	pv, err := ParsePropVal(h)
	require.NoError(t, err)
	assert.Equal(t, "map.name", pv.Key)
	assert.Equal(t, "the big room b", pv.Value)
}

func TestParsePropValNoValue(t *testing.T) {
	h, err := ParseHeader("propval map.name")
	require.NoError(t, err)
	pv, err := ParsePropVal(h)
	require.NoError(t, err)
	assert.Equal(t, "map.name", pv.Key)
	assert.Equal(t, "", pv.Value)
}

func TestParseMsgBin(t *testing.T) {
	h, err := ParseHeader("msgbin rover2 4")
	require.NoError(t, err)
	mb, err := ParseMsgBin(h)
	require.NoError(t, err)
	assert.Equal(t, ClientID("rover2"), mb.Source)
	assert.Equal(t, 4, mb.Length)
}

func TestParseMsgBinBadLength(t *testing.T) {
	h, err := ParseHeader("msgbin rover2 notanumber")
	require.NoError(t, err)
	_, err = ParseMsgBin(h)
	assert.Error(t, err)
}

func TestParseServerError(t *testing.T) {
	h, err := ParseHeader("error unknownclient rover9")
	require.NoError(t, err)
	se := ParseServerError(h)
	assert.Equal(t, ErrUnknownClient, se.Kind)
	assert.Equal(t, "rover9", se.Detail)
}

func TestEncodeMsgTextBroadcastAndTargeted(t *testing.T) {
	assert.Equal(t, []byte("msgtext rover1\nhello\n"), EncodeMsgText("rover1", "hello"))
	assert.Equal(t, []byte("msgtext\nhello\n"), EncodeMsgText("", "hello"))
}

func TestEncodeMsgBinRoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xff, '\n'}
	frame := EncodeMsgBin("rover3", payload)

	s := NewScanner(bytes.NewReader(frame))
	line, err := s.ReadLine()
	require.NoError(t, err)

	h, err := ParseHeader(line)
	require.NoError(t, err)
	require.Equal(t, CmdMsgBin, h.Command)

	mb, err := ParseMsgBin(h)
	require.NoError(t, err)
	assert.Equal(t, ClientID("rover3"), mb.Source)
	assert.Equal(t, len(payload), mb.Length)

	got, err := s.ReadExact(mb.Length)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestScannerReadLineEmptyLine(t *testing.T) {
	s := NewScanner(strings.NewReader("\nping\n"))
	_, err := s.ReadLine()
	assert.ErrorIs(t, err, ErrEmptyLine)

	line, err := s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "ping", line)
}

func TestScannerReadLineFinalLineWithoutNewline(t *testing.T) {
	s := NewScanner(strings.NewReader("bye"))
	line, err := s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "bye", line)

	_, err = s.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}
