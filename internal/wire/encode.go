package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeGreetings builds the client's half of the handshake:
// "greetings <id> playernsd <version>\n".
func EncodeGreetings(id ClientID) []byte {
	return []byte(fmt.Sprintf("greetings %s playernsd %s\n", id, ProtocolVersion))
}

// EncodeListClients builds a bare "listclients\n" request line.
func EncodeListClients() []byte {
	return []byte("listclients\n")
}

// EncodePropGet builds a "propget <key>\n" request line.
func EncodePropGet(key string) []byte {
	return []byte(fmt.Sprintf("propget %s\n", key))
}

// EncodePropSet builds a "propset <key> <value>\n" request line. value is
// taken verbatim and may contain embedded spaces, matching the decode side
// in ParsePropVal.
func EncodePropSet(key, value string) []byte {
	return []byte(fmt.Sprintf("propset %s %s\n", key, value))
}

// EncodeMsgText builds a two-line "msgtext [target]\n<body>\n" frame. An
// empty target encodes the broadcast form (bare "msgtext\n" header).
func EncodeMsgText(target ClientID, body string) []byte {
	var b strings.Builder
	b.WriteString("msgtext")
	if target != "" {
		b.WriteByte(' ')
		b.WriteString(target)
	}
	b.WriteByte('\n')
	b.WriteString(body)
	b.WriteByte('\n')
	return []byte(b.String())
}

// EncodeMsgBin builds a "msgbin [target] <length>\n" header followed by the
// raw, non-newline-delimited payload. An empty target encodes the broadcast
// form.
func EncodeMsgBin(target ClientID, payload []byte) []byte {
	var b strings.Builder
	b.WriteString("msgbin")
	if target != "" {
		b.WriteByte(' ')
		b.WriteString(target)
	}
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(len(payload)))
	b.WriteByte('\n')
	out := make([]byte, 0, b.Len()+len(payload))
	out = append(out, []byte(b.String())...)
	out = append(out, payload...)
	return out
}

// EncodePong builds the keepalive reply "pong\n".
func EncodePong() []byte {
	return []byte("pong\n")
}

// EncodeBye builds the polite-disconnect line "bye\n".
func EncodeBye() []byte {
	return []byte("bye\n")
}
