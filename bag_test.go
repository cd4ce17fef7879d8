//go:build !integration

package rosbag

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lherman-cs/rosa-bag/internal/bagtest"
)

var testStart = time.Unix(1600000000, 0)

func testBuilder() *bagtest.Builder {
	b := bagtest.New().
		Connection(0, "/chatter", bagtest.StringType, bagtest.StringDef).
		Connection(1, "/body", bagtest.BodyType, bagtest.BodyDef)

	for i := 0; i < 3; i++ {
		t := testStart.Add(time.Duration(i) * time.Second)
		b.Message(0, t, bagtest.StringPayload("hello"))
		b.Message(1, t, bagtest.BodyPayload(i%2 == 0, bagtest.Joint{X: float32(i), Y: 1, Z: 2, TrackingState: 1}))
	}
	b.Message(0, testStart.Add(3*time.Second), bagtest.StringPayload("bye"))

	return b
}

func testLayouts() map[string]*bagtest.Builder {
	return map[string]*bagtest.Builder{
		"Unchunked":    testBuilder(),
		"Chunked None": testBuilder().Chunked("none"),
		"Chunked LZ4":  testBuilder().Chunked("lz4"),
	}
}

func TestDecoderRead(t *testing.T) {
	for name, builder := range testLayouts() {
		builder := builder
		t.Run(name, func(t *testing.T) {
			decoder := NewDecoder(bytes.NewReader(builder.Bytes()))

			var ops []Op
			for {
				record, err := decoder.Read()
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					t.Fatal(err)
				}

				op, err := record.Op()
				if err != nil {
					t.Fatal(err)
				}
				ops = append(ops, op)

				if bagHeader, ok := record.(*RecordBagHeader); ok {
					connCount, err := bagHeader.ConnCount()
					if err != nil {
						t.Fatal(err)
					}
					if connCount != 2 {
						t.Fatalf("expected 2 connections, got %d", connCount)
					}
				}
				record.Close()
			}

			if ops[0] != OpBagHeader {
				t.Fatalf("expected the bag header first, got %v", ops[0])
			}

			var messages int
			for _, op := range ops {
				if op == OpMessageData {
					messages++
				}
			}
			if messages != 7 {
				t.Fatalf("expected 7 messages, got %d", messages)
			}

			version := decoder.Version()
			if version.String() != "2.0" {
				t.Fatalf("expected version 2.0, got %s", version.String())
			}
		})
	}
}

func TestDecoderReadErrors(t *testing.T) {
	raw := testBuilder().Chunked("lz4").Bytes()

	testCases := []struct {
		Name string
		Raw  []byte
	}{
		{
			Name: "Truncated Record",
			Raw:  raw[:len(raw)-3],
		},
		{
			Name: "Truncated Bag Header",
			Raw:  raw[:len("#ROSBAG V2.0\n")+10],
		},
		{
			Name: "Unknown Compression",
			Raw:  bytes.Replace(testBuilder().Chunked("none").Bytes(), []byte("compression=none"), []byte("compression=zip!"), 1),
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			err := decodeAll(bytes.NewReader(testCase.Raw))
			if err == nil {
				t.Fatal("expected to fail")
			}
		})
	}
}

func TestBagReadMessages(t *testing.T) {
	for name, builder := range testLayouts() {
		builder := builder
		t.Run(name, func(t *testing.T) {
			bag := NewBag(bytes.NewReader(builder.Bytes()))

			var topics []string
			var chatter []string
			err := bag.ReadMessages(func(msg *Message) error {
				topics = append(topics, msg.Topic)
				if msg.Topic == "/chatter" {
					chatter = append(chatter, msg.Data["data"].(string))
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}

			expectedTopics := []string{"/chatter", "/body", "/chatter", "/body", "/chatter", "/body", "/chatter"}
			if diff := cmp.Diff(expectedTopics, topics); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff([]string{"hello", "hello", "hello", "bye"}, chatter); diff != "" {
				t.Fatal(diff)
			}

			// a second pass starts over
			var bodies []map[string]interface{}
			err = bag.ReadMessages(func(msg *Message) error {
				if msg.Conn.Type != bagtest.BodyType {
					t.Fatalf("unexpected type %s", msg.Conn.Type)
				}
				bodies = append(bodies, msg.Data)
				return nil
			}, "/body")
			if err != nil {
				t.Fatal(err)
			}

			if len(bodies) != 3 {
				t.Fatalf("expected 3 bodies, got %d", len(bodies))
			}
			expectedBody := map[string]interface{}{
				"IsTracked": false,
				"Joints": []map[string]interface{}{
					{"X": float32(1), "Y": float32(1), "Z": float32(2), "TrackingState": int32(1)},
				},
				"JOINT_COUNT": uint8(25),
			}
			if diff := cmp.Diff(expectedBody, bodies[1]); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestBagReadMessagesStop(t *testing.T) {
	bag := NewBag(bytes.NewReader(testBuilder().Chunked("lz4").Bytes()))
	errStop := errors.New("stop")

	var count int
	err := bag.ReadMessages(func(msg *Message) error {
		count++
		if count == 2 {
			return errStop
		}
		return nil
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("expected errStop, got %v", err)
	}
	if count != 2 {
		t.Fatalf("expected the iteration to stop after 2 messages, got %d", count)
	}
}

func TestBagInfo(t *testing.T) {
	testCases := []struct {
		Name        string
		Builder     *bagtest.Builder
		Indexed     bool
		Compression Compression
	}{
		{
			Name:        "Unchunked",
			Builder:     testBuilder(),
			Compression: CompressionNone,
		},
		{
			Name:        "Chunked None",
			Builder:     testBuilder().Chunked("none"),
			Indexed:     true,
			Compression: CompressionNone,
		},
		{
			Name:        "Chunked LZ4",
			Builder:     testBuilder().Chunked("lz4"),
			Indexed:     true,
			Compression: CompressionLZ4,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			path := testCase.Builder.WriteFile(t, "test.bag")
			bag, err := Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer bag.Close()

			info, err := bag.Info()
			if err != nil {
				t.Fatal(err)
			}

			expected := &Info{
				Path:        path,
				Version:     "2.0",
				Duration:    3,
				Start:       1600000000,
				End:         1600000003,
				Size:        int64(len(testCase.Builder.Bytes())),
				Messages:    7,
				Indexed:     testCase.Indexed,
				Compression: testCase.Compression,
				Types: []TypeInfo{
					{Type: bagtest.BodyType, MD5: bagtest.MD5},
					{Type: bagtest.StringType, MD5: bagtest.MD5},
				},
				Topics: []TopicInfo{
					{Topic: "/body", Type: bagtest.BodyType, Messages: 3},
					{Topic: "/chatter", Type: bagtest.StringType, Messages: 4},
				},
			}
			if diff := cmp.Diff(expected, info); diff != "" {
				t.Fatal(diff)
			}

			if diff := cmp.Diff([]string{"/body", "/chatter"}, info.TopicNames()); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestBagInfoEmpty(t *testing.T) {
	bag := NewBag(bytes.NewReader(bagtest.New().Chunked("none").Bytes()))

	info, err := bag.Info()
	if err != nil {
		t.Fatal(err)
	}

	if info.Messages != 0 || info.Duration != 0 || len(info.Topics) != 0 {
		t.Fatalf("expected an empty summary, got %+v", info)
	}
}
