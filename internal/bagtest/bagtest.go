// Package bagtest builds small synthetic rosbag v2.0 files for tests.
package bagtest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pierrec/lz4/v4"
)

var endian = binary.LittleEndian

const (
	opMessageData = 0x02
	opBagHeader   = 0x03
	opIndexData   = 0x04
	opChunk       = 0x05
	opChunkInfo   = 0x06
	opConnection  = 0x07

	bagHeaderLen = 4096

	// MD5 is the md5sum of every connection, the wildcard accepted by ROS subscribers.
	MD5 = "*"
)

type connection struct {
	id         uint32
	topic      string
	msgType    string
	md5        string
	definition string
}

type message struct {
	conn    uint32
	t       time.Time
	payload []byte
}

// Builder accumulates connections and messages. Connections are written before the first
// message, inside the chunk when the bag is chunked.
type Builder struct {
	conns       []connection
	msgs        []message
	chunked     bool
	compression string
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) Connection(id uint32, topic, msgType, definition string) *Builder {
	b.conns = append(b.conns, connection{
		id:         id,
		topic:      topic,
		msgType:    msgType,
		md5:        MD5,
		definition: definition,
	})
	return b
}

func (b *Builder) Message(conn uint32, t time.Time, payload []byte) *Builder {
	b.msgs = append(b.msgs, message{conn: conn, t: t, payload: payload})
	return b
}

// Chunked puts all connections and messages in a single chunk, compressed with "none" or "lz4".
func (b *Builder) Chunked(compression string) *Builder {
	b.chunked = true
	b.compression = compression
	return b
}

func (b *Builder) Bytes() []byte {
	var body bytes.Buffer
	for _, conn := range b.conns {
		writeConnection(&body, conn)
	}
	for _, msg := range b.msgs {
		writeRecord(&body, fields{
			{"op", []byte{opMessageData}},
			{"conn", u32(msg.conn)},
			{"time", rosTime(msg.t)},
		}, msg.payload)
	}

	var out bytes.Buffer
	out.WriteString("#ROSBAG V2.0\n")
	headerPos := out.Len()
	// placeholder, rewritten once index_pos is known
	writeBagHeader(&out, 0, 0, 0)

	chunkPos := out.Len()
	var chunkCount uint32
	if b.chunked {
		chunkCount = 1
		data := body.Bytes()
		if b.compression == "lz4" {
			var compressed bytes.Buffer
			w := lz4.NewWriter(&compressed)
			if _, err := w.Write(data); err != nil {
				panic(err)
			}
			if err := w.Close(); err != nil {
				panic(err)
			}
			data = compressed.Bytes()
		}
		writeRecord(&out, fields{
			{"op", []byte{opChunk}},
			{"compression", []byte(b.compression)},
			{"size", u32(uint32(body.Len()))},
		}, data)

		for _, conn := range b.conns {
			var index bytes.Buffer
			var count uint32
			for _, msg := range b.msgs {
				if msg.conn == conn.id {
					index.Write(rosTime(msg.t))
					index.Write(u32(0))
					count++
				}
			}
			writeRecord(&out, fields{
				{"op", []byte{opIndexData}},
				{"ver", u32(1)},
				{"conn", u32(conn.id)},
				{"count", u32(count)},
			}, index.Bytes())
		}
	} else {
		out.Write(body.Bytes())
	}

	indexPos := out.Len()
	for _, conn := range b.conns {
		writeConnection(&out, conn)
	}
	if b.chunked {
		start, end := b.timeRange()
		var counts bytes.Buffer
		for _, conn := range b.conns {
			counts.Write(u32(conn.id))
			counts.Write(u32(uint32(b.count(conn.id))))
		}
		writeRecord(&out, fields{
			{"op", []byte{opChunkInfo}},
			{"ver", u32(1)},
			{"chunk_pos", u64(uint64(chunkPos))},
			{"start_time", rosTime(start)},
			{"end_time", rosTime(end)},
			{"count", u32(uint32(len(b.conns)))},
		}, counts.Bytes())
	}

	raw := out.Bytes()
	var header bytes.Buffer
	writeBagHeader(&header, uint64(indexPos), uint32(len(b.conns)), chunkCount)
	copy(raw[headerPos:], header.Bytes())
	return raw
}

// WriteFile writes the bag into t's temporary directory and returns its path.
func (b *Builder) WriteFile(t testing.TB, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (b *Builder) timeRange() (start, end time.Time) {
	for i, msg := range b.msgs {
		if i == 0 || msg.t.Before(start) {
			start = msg.t
		}
		if i == 0 || msg.t.After(end) {
			end = msg.t
		}
	}
	return
}

func (b *Builder) count(conn uint32) int {
	var n int
	for _, msg := range b.msgs {
		if msg.conn == conn {
			n++
		}
	}
	return n
}

type field struct {
	name  string
	value []byte
}

type fields []field

func (fs fields) bytes() []byte {
	var buf bytes.Buffer
	for _, f := range fs {
		buf.Write(u32(uint32(len(f.name) + 1 + len(f.value))))
		buf.WriteString(f.name)
		buf.WriteByte('=')
		buf.Write(f.value)
	}
	return buf.Bytes()
}

func writeRecord(w *bytes.Buffer, header fields, data []byte) {
	raw := header.bytes()
	w.Write(u32(uint32(len(raw))))
	w.Write(raw)
	w.Write(u32(uint32(len(data))))
	w.Write(data)
}

func writeConnection(w *bytes.Buffer, conn connection) {
	writeRecord(w, fields{
		{"op", []byte{opConnection}},
		{"conn", u32(conn.id)},
		{"topic", []byte(conn.topic)},
	}, fields{
		{"topic", []byte(conn.topic)},
		{"type", []byte(conn.msgType)},
		{"md5sum", []byte(conn.md5)},
		{"message_definition", []byte(conn.definition)},
	}.bytes())
}

// writeBagHeader pads the record to bagHeaderLen bytes like rosbag does, so it can be
// rewritten in place.
func writeBagHeader(w *bytes.Buffer, indexPos uint64, connCount, chunkCount uint32) {
	header := fields{
		{"op", []byte{opBagHeader}},
		{"index_pos", u64(indexPos)},
		{"conn_count", u32(connCount)},
		{"chunk_count", u32(chunkCount)},
	}
	padding := bagHeaderLen - 2*4 - len(header.bytes())
	writeRecord(w, header, bytes.Repeat([]byte{' '}, padding))
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	endian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	endian.PutUint64(b, v)
	return b
}

func rosTime(t time.Time) []byte {
	b := make([]byte, 8)
	endian.PutUint32(b, uint32(t.Unix()))
	endian.PutUint32(b[4:], uint32(t.Nanosecond()))
	return b
}

// Payload serializes message fields in ROS wire format.
type Payload struct {
	buf bytes.Buffer
}

func NewPayload() *Payload {
	return &Payload{}
}

func (p *Payload) String(v string) *Payload {
	p.buf.Write(u32(uint32(len(v))))
	p.buf.WriteString(v)
	return p
}

func (p *Payload) Bool(v bool) *Payload {
	if v {
		p.buf.WriteByte(1)
	} else {
		p.buf.WriteByte(0)
	}
	return p
}

func (p *Payload) Uint8(v uint8) *Payload {
	p.buf.WriteByte(v)
	return p
}

func (p *Payload) Int32(v int32) *Payload {
	p.buf.Write(u32(uint32(v)))
	return p
}

// Len writes the length prefix of a variable-length array.
func (p *Payload) Len(n int) *Payload {
	p.buf.Write(u32(uint32(n)))
	return p
}

func (p *Payload) Float32(v float32) *Payload {
	p.buf.Write(u32(math.Float32bits(v)))
	return p
}

func (p *Payload) Float64(v float64) *Payload {
	p.buf.Write(u64(math.Float64bits(v)))
	return p
}

func (p *Payload) Bytes() []byte {
	return append([]byte(nil), p.buf.Bytes()...)
}
