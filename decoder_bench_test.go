//go:build !integration

package rosbag

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/lherman-cs/rosa-bag/internal/bagtest"
)

func BenchmarkE2E(b *testing.B) {
	raw := bagtest.Session(500, 25).Chunked("lz4").Bytes()
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := decodeAll(bytes.NewReader(raw)); err != nil {
			b.Fatal(err)
		}
	}
}

func decodeAll(r io.Reader) error {
	decoder := NewDecoder(r)
	for {
		record, err := decoder.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if msgRecord, ok := record.(*RecordMessageData); ok {
			v := make(map[string]interface{})
			err = msgRecord.UnmarshallTo(v)
		}
		record.Close()
		if err != nil {
			return err
		}
	}
}
