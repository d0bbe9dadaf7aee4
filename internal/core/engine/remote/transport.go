package remote

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"
)

// ALPN is the protocol name negotiated on QUIC connections.
const ALPN = "football-engine"

// maxFrameSize bounds a single JSON frame.
const maxFrameSize = 4 << 20

// transport moves whole JSON frames in both directions. Frames passed to
// send end in a newline and are not retained after send returns.
type transport interface {
	send(ctx context.Context, frame []byte) error
	receive(ctx context.Context) ([]byte, error)
	close() error
}

func deadline(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}

type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(maxFrameSize)
	return &wsTransport{conn: conn}
}

func (t *wsTransport) send(ctx context.Context, frame []byte) error {
	_ = t.conn.SetWriteDeadline(deadline(ctx))
	return t.conn.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(frame, []byte{'\n'}))
}

func (t *wsTransport) receive(ctx context.Context) ([]byte, error) {
	_ = t.conn.SetReadDeadline(deadline(ctx))
	kind, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind != websocket.TextMessage {
		return nil, fmt.Errorf("%w: unexpected websocket message type %d", ErrProtocol, kind)
	}
	return data, nil
}

func (t *wsTransport) close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}

// quicTransport carries newline-delimited frames on one bidirectional stream.
type quicTransport struct {
	conn   *quic.Conn
	stream *quic.Stream
	reader *bufio.Reader
}

func newQUICTransport(conn *quic.Conn, stream *quic.Stream) *quicTransport {
	return &quicTransport{
		conn:   conn,
		stream: stream,
		reader: bufio.NewReaderSize(stream, 64<<10),
	}
}

func (t *quicTransport) send(ctx context.Context, frame []byte) error {
	_ = t.stream.SetWriteDeadline(deadline(ctx))
	_, err := t.stream.Write(frame)
	return err
}

func (t *quicTransport) receive(ctx context.Context) ([]byte, error) {
	_ = t.stream.SetReadDeadline(deadline(ctx))
	var line []byte
	for {
		chunk, err := t.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxFrameSize {
			return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrProtocol, maxFrameSize)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return line[:len(line)-1], nil
	}
}

func (t *quicTransport) close() error {
	_ = t.stream.Close()
	return t.conn.CloseWithError(0, "closed")
}
