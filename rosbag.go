package rosbag

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

const (
	versionFormat = "#ROSBAG V%d.%d\n"
)

var (
	supportedVersion = Version{
		Major: 2,
		Minor: 0,
	}
)

var (
	errInvalidOp                = errors.New("invalid op")
	errInvalidHeader            = errors.New("invalid record header")
	errNotFoundConnectionHeader = errors.New("connection header is not found")
	errFieldNotFound            = errors.New("header field is not found")
)

type Op uint8

const (
	// OpInvalid is an extension from the standard. This Op marks an invalid Op.
	OpInvalid     Op = 0x00
	OpBagHeader   Op = 0x03
	OpChunk       Op = 0x05
	OpConnection  Op = 0x07
	OpMessageData Op = 0x02
	OpIndexData   Op = 0x04
	OpChunkInfo   Op = 0x06
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionBZ2  Compression = "bz2"
	CompressionLZ4  Compression = "lz4"
)

type Version struct {
	Major uint
	Minor uint
}

func (version *Version) String() string {
	return fmt.Sprintf("%d.%d", version.Major, version.Minor)
}

// Record is a single rosbag record. Records are pooled by the Decoder, so the
// bytes returned by Header and Data are only valid until Close is called.
type Record interface {
	Header() []byte
	Data() []byte
	Op() (Op, error)
	String() string
	Close()
}

type RecordBase struct {
	// Raw holds header_len, header, data_len and data back to back.
	Raw       []byte
	HeaderLen uint32
	DataLen   uint32
	closeFn   func()
}

func (record *RecordBase) Header() []byte {
	return record.Raw[lenInBytes : lenInBytes+record.HeaderLen]
}

func (record *RecordBase) Data() []byte {
	off := lenInBytes*2 + record.HeaderLen
	return record.Raw[off : off+record.DataLen]
}

func (record *RecordBase) Op() (Op, error) {
	value, err := record.findField("op")
	if err != nil {
		return OpInvalid, err
	}

	if len(value) != 1 {
		return OpInvalid, errInvalidOp
	}

	return Op(value[0]), nil
}

// Close returns the record to the decoder's pool. The record must not be used afterwards.
func (record *RecordBase) Close() {
	if record.closeFn != nil {
		closeFn := record.closeFn
		record.closeFn = nil
		closeFn()
	}
}

func (record *RecordBase) String() string {
	return fmt.Sprintf(`
header_len : %d bytes
data_len   : %d bytes
`, record.HeaderLen, record.DataLen)
}

func (record *RecordBase) grow(size uint32) {
	if uint32(cap(record.Raw)) >= size {
		record.Raw = record.Raw[:size]
		return
	}

	raw := make([]byte, size, size*2)
	copy(raw, record.Raw)
	record.Raw = raw
}

func (record *RecordBase) findField(key string) ([]byte, error) {
	var found []byte
	err := iterateHeaderFields(record.Header(), func(k, v []byte) bool {
		if string(k) == key {
			found = v
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, fmt.Errorf("%w: %s", errFieldNotFound, key)
	}

	return found, nil
}

func (record *RecordBase) findUint32(key string) (uint32, error) {
	value, err := record.findField(key)
	if err != nil {
		return 0, err
	}

	if len(value) != 4 {
		return 0, errInvalidHeader
	}

	return endian.Uint32(value), nil
}

func (record *RecordBase) findUint64(key string) (uint64, error) {
	value, err := record.findField(key)
	if err != nil {
		return 0, err
	}

	if len(value) != 8 {
		return 0, errInvalidHeader
	}

	return endian.Uint64(value), nil
}

func (record *RecordBase) findTime(key string) (time.Time, error) {
	value, err := record.findField(key)
	if err != nil {
		return time.Time{}, err
	}

	if len(value) != 8 {
		return time.Time{}, errInvalidHeader
	}

	return extractTime(value), nil
}

// iterateHeaderFields walks through "<len><name>=<value>" fields. fn can stop the iteration
// early by returning false.
func iterateHeaderFields(header []byte, fn func(key, value []byte) bool) error {
	for len(header) > 0 {
		if len(header) < lenInBytes {
			return errInvalidHeader
		}

		fieldLen := endian.Uint32(header)
		header = header[lenInBytes:]
		if uint32(len(header)) < fieldLen {
			return errInvalidHeader
		}

		field := header[:fieldLen]
		header = header[fieldLen:]

		idx := bytes.IndexByte(field, headerFieldDelimiter)
		if idx == -1 {
			return errInvalidHeader
		}

		if !fn(field[:idx], field[idx+1:]) {
			return nil
		}
	}

	return nil
}

type RecordBagHeader struct {
	*RecordBase
}

func (record *RecordBagHeader) IndexPos() (uint64, error) {
	return record.findUint64("index_pos")
}

func (record *RecordBagHeader) ConnCount() (uint32, error) {
	return record.findUint32("conn_count")
}

func (record *RecordBagHeader) ChunkCount() (uint32, error) {
	return record.findUint32("chunk_count")
}

func (record *RecordBagHeader) String() string {
	indexPos, _ := record.IndexPos()
	connCount, _ := record.ConnCount()
	chunkCount, _ := record.ChunkCount()
	return fmt.Sprintf(`
index_pos   : %d
conn_count  : %d
chunk_count : %d
`, indexPos, connCount, chunkCount)
}

// RecordChunk only carries the header. Its records are read by the Decoder right after it.
type RecordChunk struct {
	*RecordBase
}

func (record *RecordChunk) Compression() (Compression, error) {
	value, err := record.findField("compression")
	if err != nil {
		return "", err
	}

	return Compression(value), nil
}

// Size is the uncompressed size of the chunk.
func (record *RecordChunk) Size() (uint32, error) {
	return record.findUint32("size")
}

func (record *RecordChunk) Data() []byte {
	return nil
}

func (record *RecordChunk) String() string {
	compression, _ := record.Compression()
	size, _ := record.Size()
	return fmt.Sprintf(`
compression : %s
size        : %d bytes
`, compression, size)
}

type RecordConnection struct {
	*RecordBase
}

func (record *RecordConnection) Conn() (uint32, error) {
	return record.findUint32("conn")
}

func (record *RecordConnection) Topic() (string, error) {
	value, err := record.findField("topic")
	if err != nil {
		return "", err
	}

	return string(value), nil
}

// ConnectionHeader parses the data part of the record. The result doesn't share memory with
// the record.
func (record *RecordConnection) ConnectionHeader() (*ConnectionHeader, error) {
	var hdr ConnectionHeader
	var msgDefRaw []byte
	err := iterateHeaderFields(record.Data(), func(key, value []byte) bool {
		switch string(key) {
		case "topic":
			hdr.Topic = string(value)
		case "type":
			hdr.Type = string(value)
		case "md5sum":
			hdr.MD5Sum = string(value)
		case "message_definition":
			msgDefRaw = value
		case "callerid":
			hdr.CallerID = string(value)
		case "latching":
			hdr.Latching = string(value) == "1"
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	// Older bags keep the topic in the record header only
	if hdr.Topic == "" {
		hdr.Topic, err = record.Topic()
		if err != nil {
			return nil, err
		}
	}

	hdr.MessageDefinition.Type = hdr.Type
	if err := hdr.MessageDefinition.unmarshall(msgDefRaw); err != nil {
		return nil, fmt.Errorf("%s: %w", hdr.Type, err)
	}

	return &hdr, nil
}

func (record *RecordConnection) String() string {
	conn, _ := record.Conn()
	topic, _ := record.Topic()
	return fmt.Sprintf(`
conn  : %d
topic : %s
`, conn, topic)
}

type RecordMessageData struct {
	*RecordBase
	connHdr *ConnectionHeader
}

func (record *RecordMessageData) Conn() (uint32, error) {
	return record.findUint32("conn")
}

func (record *RecordMessageData) Time() (time.Time, error) {
	return record.findTime("time")
}

func (record *RecordMessageData) ConnectionHeader() *ConnectionHeader {
	return record.connHdr
}

// UnmarshallTo decodes the message into v. v must be a map[string]interface{} or a pointer
// to a struct. Struct fields are matched by the "rosbag" tag, or the field name.
func (record *RecordMessageData) UnmarshallTo(v interface{}) error {
	_, err := decodeMessageData(&record.connHdr.MessageDefinition, record.Data(), v)
	return err
}

func (record *RecordMessageData) String() string {
	conn, _ := record.Conn()
	t, _ := record.Time()
	return fmt.Sprintf(`
conn  : %d
topic : %s
time  : %s
`, conn, record.connHdr.Topic, t)
}

type RecordIndexData struct {
	*RecordBase
}

func (record *RecordIndexData) Conn() (uint32, error) {
	return record.findUint32("conn")
}

func (record *RecordIndexData) Count() (uint32, error) {
	return record.findUint32("count")
}

type RecordChunkInfo struct {
	*RecordBase
}

func (record *RecordChunkInfo) ChunkPos() (uint64, error) {
	return record.findUint64("chunk_pos")
}

func (record *RecordChunkInfo) StartTime() (time.Time, error) {
	return record.findTime("start_time")
}

func (record *RecordChunkInfo) EndTime() (time.Time, error) {
	return record.findTime("end_time")
}

func (record *RecordChunkInfo) Count() (uint32, error) {
	return record.findUint32("count")
}
