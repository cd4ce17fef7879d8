package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	rosbag "github.com/lherman-cs/rosa-bag"
	"github.com/lherman-cs/rosa-bag/internal/topics"
)

const timestampColumn = "timestamp"

// csvFile is the output of one topic. The header is written with the first message, since
// it may depend on it.
type csvFile struct {
	topic  string
	path   string
	schema *topics.Schema

	f     *os.File
	zw    *zstd.Encoder
	w     *csv.Writer
	width int
	rows  int
}

func createCSVFile(path, topic string, schema *topics.Schema, compression Compression) (*csvFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	cf := csvFile{
		topic:  topic,
		path:   path,
		schema: schema,
		f:      f,
		width:  -1,
	}

	var out io.Writer = f
	if compression == CompressionZstd {
		cf.zw, err = zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		out = cf.zw
	}
	cf.w = csv.NewWriter(out)

	return &cf, nil
}

func (cf *csvFile) writeHeader(first map[string]interface{}) error {
	columns, err := cf.schema.Columns(first)
	if err != nil {
		return fmt.Errorf("%s: %w", cf.topic, err)
	}

	cf.width = len(columns)
	return cf.w.Write(append([]string{timestampColumn}, columns...))
}

func (cf *csvFile) write(msg *rosbag.Message) error {
	if cf.width < 0 {
		if err := cf.writeHeader(msg.Data); err != nil {
			return err
		}
	}

	row, err := cf.schema.Flatten(msg.Data, cf.width)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", cf.topic, topics.FormatValue(msg.Time), err)
	}

	if err := cf.w.Write(append([]string{topics.FormatValue(msg.Time)}, row...)); err != nil {
		return err
	}
	cf.rows++
	return nil
}

// finish writes the header when the topic had no message, flushes and closes the file.
func (cf *csvFile) finish() error {
	if cf.width < 0 {
		if err := cf.writeHeader(nil); err != nil {
			cf.abort()
			return err
		}
	}

	cf.w.Flush()
	if err := cf.w.Error(); err != nil {
		cf.abort()
		return err
	}

	if cf.zw != nil {
		if err := cf.zw.Close(); err != nil {
			cf.f.Close()
			return err
		}
	}

	return cf.f.Close()
}

// abort closes the file without flushing. The partial file is left on disk.
func (cf *csvFile) abort() {
	if cf.zw != nil {
		cf.zw.Close()
	}
	cf.f.Close()
}

func (cf *csvFile) result() Result {
	return Result{
		Topic: cf.topic,
		Path:  cf.path,
		Rows:  cf.rows,
	}
}
