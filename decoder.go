package rosbag

import (
	"bufio"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

const (
	lenInBytes           = 4
	headerFieldDelimiter = '='
	initialRecordSize    = 4096
)

var (
	errUnsupportedCompression = errors.New("unsupported compression algorithm. Available algortihms: [none, bz2, lz4]")
)

var (
	recordPool = sync.Pool{
		New: func() interface{} {
			return &RecordBase{
				Raw: make([]byte, initialRecordSize),
			}
		},
	}
)

type Decoder struct {
	reader         *bufio.Reader
	chunkReader    io.Reader
	chunkLimit     *io.LimitedReader
	checkedVersion bool
	version        Version
	conns          map[uint32]*ConnectionHeader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		reader: bufio.NewReader(r),
		conns:  make(map[uint32]*ConnectionHeader),
	}
}

// Read returns the next record in the rosbag. The version line is checked on the first call.
// When it reaches EOF, Read returns io.EOF error. Records inside chunks are returned right
// after their RecordChunk. Callers should Close every record once they're done with it.
func (decoder *Decoder) Read() (Record, error) {
	if !decoder.checkedVersion {
		if err := decoder.checkVersion(); err != nil {
			return nil, err
		}

		decoder.checkedVersion = true
	}

	record := recordPool.Get().(*RecordBase)
	record.closeFn = func() {
		recordPool.Put(record)
	}
	if decoder.chunkReader != nil {
		specializedRecord, err := decoder.decodeRecord(decoder.chunkReader, record)
		switch err {
		case nil:
			return specializedRecord, nil
		case io.EOF:
			/* explicit ignore */
		default:
			// the record is not usable, so recyle it
			record.Close()
			return nil, err
		}

		// at this point, the error must be EOF. Compressed streams may leave trailing bytes
		// behind, so skip them before reading from the source again
		if _, err := io.Copy(io.Discard, decoder.chunkLimit); err != nil {
			record.Close()
			return nil, err
		}
		decoder.chunkReader = nil
		decoder.chunkLimit = nil
	}

	specializedRecord, err := decoder.decodeRecord(decoder.reader, record)
	if err != nil {
		// the record is not usable, so recyle it
		record.Close()
		return nil, err
	}

	return specializedRecord, nil
}

// Version returns the bag format version. It's only valid after the first Read.
func (decoder *Decoder) Version() Version {
	return decoder.version
}

// ConnectionHeader returns the connection header registered under conn so far.
func (decoder *Decoder) ConnectionHeader(conn uint32) (*ConnectionHeader, bool) {
	hdr, ok := decoder.conns[conn]
	return hdr, ok
}

func (decoder *Decoder) handleChunk(record *RecordBase) (Record, error) {
	chunkRecord := RecordChunk{
		RecordBase: record,
	}

	compression, err := chunkRecord.Compression()
	if err != nil {
		return nil, err
	}

	chunkLimit := &io.LimitedReader{R: decoder.reader, N: int64(record.DataLen)}
	switch compression {
	case CompressionNone:
		decoder.chunkReader = chunkLimit
	case CompressionBZ2:
		decoder.chunkReader = bzip2.NewReader(chunkLimit)
	case CompressionLZ4:
		decoder.chunkReader = lz4.NewReader(chunkLimit)
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedCompression, compression)
	}
	decoder.chunkLimit = chunkLimit

	return &chunkRecord, nil
}

func (decoder *Decoder) handleConnection(record *RecordBase) (Record, error) {
	connRecord := RecordConnection{
		RecordBase: record,
	}

	conn, err := connRecord.Conn()
	if err != nil {
		return nil, err
	}

	hdr, err := connRecord.ConnectionHeader()
	if err != nil {
		return nil, err
	}

	decoder.conns[conn] = hdr
	return &connRecord, nil
}

func (decoder *Decoder) handleMessageData(record *RecordBase) (Record, error) {
	msgRecord := RecordMessageData{
		RecordBase: record,
	}

	conn, err := msgRecord.Conn()
	if err != nil {
		return nil, err
	}

	connHdr, ok := decoder.conns[conn]
	if !ok {
		return nil, fmt.Errorf("%w: conn %d", errNotFoundConnectionHeader, conn)
	}

	msgRecord.connHdr = connHdr
	return &msgRecord, nil
}

func (decoder *Decoder) checkVersion() error {
	var version Version

	line, err := decoder.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	_, err = fmt.Sscanf(line, versionFormat, &version.Major, &version.Minor)
	if err != nil {
		return fmt.Errorf("invalid version line %q: %w", line, err)
	}

	if version.Major != supportedVersion.Major || version.Minor != supportedVersion.Minor {
		return fmt.Errorf("%s is not supported. %s is the current supported version", &version, &supportedVersion)
	}

	decoder.version = version
	return nil
}

func (decoder *Decoder) decodeRecord(r io.Reader, record *RecordBase) (Record, error) {
	var off uint32
	var err error

	record.grow(off + lenInBytes)
	_, err = io.ReadFull(r, record.Raw[off:off+lenInBytes])
	if err != nil {
		return nil, err
	}
	record.HeaderLen = endian.Uint32(record.Raw[off : off+lenInBytes])
	off += lenInBytes

	record.grow(off + record.HeaderLen)
	_, err = io.ReadFull(r, record.Raw[off:off+record.HeaderLen])
	if err != nil {
		return nil, noEOF(err)
	}
	off += record.HeaderLen

	// DataLen is unknown yet, keep Data() empty while reading the op
	record.DataLen = 0
	record.grow(off + lenInBytes)
	op, err := record.Op()
	if err != nil {
		return nil, err
	}

	_, err = io.ReadFull(r, record.Raw[off:off+lenInBytes])
	if err != nil {
		return nil, noEOF(err)
	}
	record.DataLen = endian.Uint32(record.Raw[off : off+lenInBytes])
	off += lenInBytes

	// Since RecordChunk contains a lot of messages and connections, we don't parse
	// the data part. We'll let the next iteration to parse this.
	if op == OpChunk {
		return decoder.handleChunk(record)
	}

	record.grow(off + record.DataLen)
	_, err = io.ReadFull(r, record.Raw[off:off+record.DataLen])
	if err != nil {
		return nil, noEOF(err)
	}

	switch op {
	case OpBagHeader:
		return &RecordBagHeader{RecordBase: record}, nil
	case OpConnection:
		return decoder.handleConnection(record)
	case OpMessageData:
		return decoder.handleMessageData(record)
	case OpIndexData:
		return &RecordIndexData{RecordBase: record}, nil
	case OpChunkInfo:
		return &RecordChunkInfo{RecordBase: record}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", errInvalidOp, uint8(op))
	}
}

// noEOF turns io.EOF into io.ErrUnexpectedEOF. Only a record boundary is a clean EOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
