package rosbag

import (
	"errors"
	"io"
	"os"
	"time"
)

// Message is a decoded message data record.
type Message struct {
	Topic string
	Time  time.Time
	Conn  *ConnectionHeader
	Data  map[string]interface{}
}

// Bag gives sequential access to the messages of a rosbag. Every pass starts from the
// beginning of the underlying reader.
type Bag struct {
	Path string

	r      io.ReadSeeker
	closer io.Closer
}

// Open opens the bag file at path. The caller must Close it.
func Open(path string) (*Bag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	bag := NewBag(f)
	bag.Path = path
	bag.closer = f
	return bag, nil
}

func NewBag(r io.ReadSeeker) *Bag {
	return &Bag{r: r}
}

func (bag *Bag) Close() error {
	if bag.closer == nil {
		return nil
	}
	return bag.closer.Close()
}

// ReadMessages calls fn for every message in the bag in file order. Only messages that belong
// to topics are decoded, all of them when topics is empty. An error returned by fn stops the
// iteration and is returned as is.
func (bag *Bag) ReadMessages(fn func(msg *Message) error, topics ...string) error {
	filter := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		filter[topic] = struct{}{}
	}

	decoder, err := bag.rewind()
	if err != nil {
		return err
	}

	return walk(decoder, func(record Record) error {
		msgRecord, ok := record.(*RecordMessageData)
		if !ok {
			return nil
		}

		connHdr := msgRecord.ConnectionHeader()
		if _, ok := filter[connHdr.Topic]; len(filter) > 0 && !ok {
			return nil
		}

		t, err := msgRecord.Time()
		if err != nil {
			return err
		}

		data := make(map[string]interface{})
		if err := msgRecord.UnmarshallTo(data); err != nil {
			return err
		}

		return fn(&Message{
			Topic: connHdr.Topic,
			Time:  t,
			Conn:  connHdr,
			Data:  data,
		})
	})
}

// rewind seeks back to the beginning of the bag and returns a fresh decoder.
func (bag *Bag) rewind() (*Decoder, error) {
	if _, err := bag.r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return NewDecoder(bag.r), nil
}

// walk hands every record to fn until EOF. Records are closed after fn returns.
func walk(decoder *Decoder, fn func(record Record) error) error {
	for {
		record, err := decoder.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		err = fn(record)
		record.Close()
		if err != nil {
			return err
		}
	}
}
