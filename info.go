package rosbag

import (
	"io"
	"sort"
	"time"
)

// Info summarizes a bag, mirroring the fields printed by `rosbag info`.
type Info struct {
	Path        string      `yaml:"path"`
	Version     string      `yaml:"version"`
	Duration    float64     `yaml:"duration"`
	Start       float64     `yaml:"start"`
	End         float64     `yaml:"end"`
	Size        int64       `yaml:"size"`
	Messages    int         `yaml:"messages"`
	Indexed     bool        `yaml:"indexed"`
	Compression Compression `yaml:"compression"`
	Types       []TypeInfo  `yaml:"types"`
	Topics      []TopicInfo `yaml:"topics"`
}

type TypeInfo struct {
	Type string `yaml:"type"`
	MD5  string `yaml:"md5"`
}

type TopicInfo struct {
	Topic       string `yaml:"topic"`
	Type        string `yaml:"type"`
	Messages    int    `yaml:"messages"`
	Connections int    `yaml:"connections,omitempty"`
}

// TopicNames returns the topics of the bag sorted by name.
func (info *Info) TopicNames() []string {
	names := make([]string, len(info.Topics))
	for i, topic := range info.Topics {
		names[i] = topic.Topic
	}
	return names
}

// Info scans the whole bag and computes its summary.
func (bag *Bag) Info() (*Info, error) {
	var (
		version      Version
		start, end   time.Time
		messages     int
		indexed      bool
		compressions = make(map[Compression]int)
		conns        = make(map[uint32]*ConnectionHeader)
		connCounts   = make(map[uint32]int)
	)

	decoder, err := bag.rewind()
	if err != nil {
		return nil, err
	}

	err = walk(decoder, func(record Record) error {
		switch record := record.(type) {
		case *RecordChunk:
			compression, err := record.Compression()
			if err != nil {
				return err
			}
			compressions[compression]++
		case *RecordConnection:
			conn, err := record.Conn()
			if err != nil {
				return err
			}
			hdr, _ := decoder.ConnectionHeader(conn)
			conns[conn] = hdr
		case *RecordMessageData:
			conn, err := record.Conn()
			if err != nil {
				return err
			}
			t, err := record.Time()
			if err != nil {
				return err
			}

			if messages == 0 || t.Before(start) {
				start = t
			}
			if messages == 0 || t.After(end) {
				end = t
			}
			messages++
			connCounts[conn]++
		case *RecordIndexData, *RecordChunkInfo:
			indexed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	version = decoder.Version()

	size, err := bag.r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	info := Info{
		Path:        bag.Path,
		Version:     version.String(),
		Size:        size,
		Messages:    messages,
		Indexed:     indexed,
		Compression: CompressionNone,
	}
	if messages > 0 {
		info.Start = toSec(start)
		info.End = toSec(end)
		info.Duration = end.Sub(start).Seconds()
	}

	// the dominant chunk compression, same as rosbag info
	var best int
	for compression, count := range compressions {
		if count > best || (count == best && compression < info.Compression) {
			best = count
			info.Compression = compression
		}
	}

	types := make(map[string]string)
	topics := make(map[string]*TopicInfo)
	for conn, hdr := range conns {
		types[hdr.Type] = hdr.MD5Sum

		topic, ok := topics[hdr.Topic]
		if !ok {
			topic = &TopicInfo{Topic: hdr.Topic, Type: hdr.Type}
			topics[hdr.Topic] = topic
		}
		topic.Messages += connCounts[conn]
		topic.Connections++
	}

	for typ, md5 := range types {
		info.Types = append(info.Types, TypeInfo{Type: typ, MD5: md5})
	}
	sort.Slice(info.Types, func(i, j int) bool { return info.Types[i].Type < info.Types[j].Type })

	for _, topic := range topics {
		// rosbag info only lists connections for topics recorded from several publishers
		if topic.Connections == 1 {
			topic.Connections = 0
		}
		info.Topics = append(info.Topics, *topic)
	}
	sort.Slice(info.Topics, func(i, j int) bool { return info.Topics[i].Topic < info.Topics[j].Topic })

	return &info, nil
}

func toSec(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
