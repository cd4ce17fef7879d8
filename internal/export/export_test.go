//go:build !integration

package export

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	rosbag "github.com/lherman-cs/rosa-bag"
	"github.com/lherman-cs/rosa-bag/internal/bagtest"
	"github.com/lherman-cs/rosa-bag/internal/topics"
	"go.uber.org/zap/zaptest"
)

func openBag(t *testing.T, builder *bagtest.Builder) *rosbag.Bag {
	t.Helper()

	bag, err := rosbag.Open(builder.WriteFile(t, "session.bag"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bag.Close() })
	return bag
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			t.Fatal(err)
		}
		defer zr.Close()
		r = zr
	}

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestExporterTopic(t *testing.T) {
	bag := openBag(t, bagtest.Session(3, 25).Chunked("lz4"))
	dir := t.TempDir()

	testCases := []struct {
		Name     string
		Topic    string
		Options  Options
		Path     string
		Expected [][]string
	}{
		{
			Name:    "Derived Name",
			Topic:   "/WS1/reco_stt",
			Options: Options{Dir: dir},
			Path:    filepath.Join(dir, "WS1_reco_stt.csv"),
			Expected: [][]string{
				{"timestamp", "data"},
				{"1600000000000000000", "bonjour"},
				{"1600000000100000000", "bonjour"},
				{"1600000000200000000", "bonjour"},
			},
		},
		{
			Name:    "Explicit Name",
			Topic:   "/WS1/attention_visual",
			Options: Options{Dir: dir, Name: "visual"},
			Path:    filepath.Join(dir, "visual.csv"),
			Expected: [][]string{
				{"timestamp", "id", "visual"},
				{"1600000000000000000", "face", "smile, big"},
				{"1600000000100000000", "face", "smile, big"},
				{"1600000000200000000", "face", "smile, big"},
			},
		},
		{
			Name:    "Explicit Name With Extension",
			Topic:   "/WS1/borderless/commands",
			Options: Options{Dir: dir, Name: "commands.txt"},
			Path:    filepath.Join(dir, "commands.txt"),
			Expected: [][]string{
				{"timestamp", "command", "text", "x", "y", "size", "r", "g", "b", "a", "r", "g", "b", "a"},
				{"1600000000000000000", "draw", "hello", "1.5", "2", "12", "1", "0", "0", "1", "0", "0", "1", "0.5"},
				{"1600000000100000000", "draw", "hello", "1.5", "2", "12", "1", "0", "0", "1", "0", "0", "1", "0.5"},
				{"1600000000200000000", "draw", "hello", "1.5", "2", "12", "1", "0", "0", "1", "0", "0", "1", "0.5"},
			},
		},
		{
			Name:    "Zstd",
			Topic:   "/WS1/attention",
			Options: Options{Dir: dir, Compression: CompressionZstd},
			Path:    filepath.Join(dir, "WS1_attention.csv.zst"),
			Expected: [][]string{
				{"timestamp", "data"},
				{"1600000000000000000", "look"},
				{"1600000000100000000", "look"},
				{"1600000000200000000", "look"},
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			exporter := New(topics.NewTable(""), testCase.Options, zaptest.NewLogger(t))

			result, err := exporter.Topic(bag, testCase.Topic)
			if err != nil {
				t.Fatal(err)
			}

			expectedResult := Result{Topic: testCase.Topic, Path: testCase.Path, Rows: len(testCase.Expected) - 1}
			if diff := cmp.Diff(expectedResult, result); diff != "" {
				t.Fatal(diff)
			}

			if diff := cmp.Diff(testCase.Expected, readCSV(t, result.Path)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestExporterTopicUnsupported(t *testing.T) {
	bag := openBag(t, bagtest.Session(1, 25))
	dir := filepath.Join(t.TempDir(), "out")

	exporter := New(topics.NewTable(""), Options{Dir: dir}, zaptest.NewLogger(t))
	_, err := exporter.Topic(bag, "/rosout")
	if !errors.Is(err, topics.ErrUnsupportedTopic) {
		t.Fatalf("expected ErrUnsupportedTopic, got %v", err)
	}

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected %s to not be created, got %v", dir, err)
	}
}

func TestExporterTopicWithoutMessages(t *testing.T) {
	builder := bagtest.New().
		Connection(0, "/WS1/activebody", bagtest.BodyType, bagtest.BodyDef).
		Connection(1, "/WS1/reco_stt", bagtest.StringType, bagtest.StringDef).
		Message(1, time.Unix(1600000000, 0), bagtest.StringPayload("hi"))
	bag := openBag(t, builder)

	exporter := New(topics.NewTable(""), Options{Dir: t.TempDir()}, zaptest.NewLogger(t))
	result, err := exporter.Topic(bag, "/WS1/activebody")
	if err != nil {
		t.Fatal(err)
	}

	if result.Rows != 0 {
		t.Fatalf("expected no rows, got %d", result.Rows)
	}
	if diff := cmp.Diff([][]string{{"timestamp", "IsTracked"}}, readCSV(t, result.Path)); diff != "" {
		t.Fatal(diff)
	}
}

func TestExporterJointCountChanged(t *testing.T) {
	start := time.Unix(1600000000, 0)
	builder := bagtest.New().
		Connection(0, "/WS1/activebody", bagtest.BodyType, bagtest.BodyDef).
		Message(0, start, bagtest.BodyPayload(true, bagtest.Joint{}, bagtest.Joint{})).
		Message(0, start.Add(time.Second), bagtest.BodyPayload(true, bagtest.Joint{}, bagtest.Joint{}, bagtest.Joint{}))
	bag := openBag(t, builder)

	exporter := New(topics.NewTable(""), Options{Dir: t.TempDir()}, zaptest.NewLogger(t))
	_, err := exporter.Topic(bag, "/WS1/activebody")
	if !errors.Is(err, topics.ErrJointCountChanged) {
		t.Fatalf("expected ErrJointCountChanged, got %v", err)
	}
}

func TestExporterAll(t *testing.T) {
	for _, compression := range []string{"none", "lz4"} {
		compression := compression
		t.Run(compression, func(t *testing.T) {
			bag := openBag(t, bagtest.Session(4, 25).Chunked(compression))
			dir := filepath.Join(t.TempDir(), "out")

			exporter := New(topics.NewTable(""), Options{Dir: dir, Name: "session"}, zaptest.NewLogger(t))
			results, err := exporter.All(bag)
			if err != nil {
				t.Fatal(err)
			}

			var files []string
			for _, result := range results {
				files = append(files, filepath.Base(result.Path))

				records := readCSV(t, result.Path)
				if len(records) != 5 {
					t.Fatalf("%s: expected a header and 4 rows, got %d lines", result.Topic, len(records))
				}
				for i, record := range records {
					if len(record) != len(records[0]) {
						t.Fatalf("%s: line %d has %d columns, header has %d", result.Topic, i, len(record), len(records[0]))
					}
				}
			}

			expected := []string{
				"session_WS1_activebody.csv",
				"session_WS1_attention.csv",
				"session_WS1_attention_visual.csv",
				"session_WS1_borderless_commands.csv",
				"session_WS1_reco_stt.csv",
			}
			if diff := cmp.Diff(expected, files); diff != "" {
				t.Fatal(diff)
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != len(expected) {
				t.Fatalf("expected %d files, got %d", len(expected), len(entries))
			}
		})
	}
}

func TestExporterAllActiveBodyHeader(t *testing.T) {
	bag := openBag(t, bagtest.Session(1, 25))

	exporter := New(topics.NewTable(""), Options{Dir: t.TempDir()}, zaptest.NewLogger(t))
	results, err := exporter.All(bag)
	if err != nil {
		t.Fatal(err)
	}

	if results[0].Topic != "/WS1/activebody" {
		t.Fatalf("expected /WS1/activebody first, got %s", results[0].Topic)
	}

	records := readCSV(t, results[0].Path)
	header := records[0]
	if len(header) != 2+25*4 {
		t.Fatalf("expected %d columns, got %d", 2+25*4, len(header))
	}
	if diff := cmp.Diff([]string{"timestamp", "IsTracked", "JoinType: 0 x"}, header[:3]); diff != "" {
		t.Fatal(diff)
	}
	if header[len(header)-1] != "JoinType: 24 TrackingState" {
		t.Fatalf("unexpected last column %q", header[len(header)-1])
	}
}

func TestExporterAllNoSupportedTopic(t *testing.T) {
	builder := bagtest.New().
		Connection(0, "/rosout", bagtest.StringType, bagtest.StringDef).
		Message(0, time.Unix(1600000000, 0), bagtest.StringPayload("noise"))
	bag := openBag(t, builder)
	dir := filepath.Join(t.TempDir(), "out")

	exporter := New(topics.NewTable(""), Options{Dir: dir}, zaptest.NewLogger(t))
	results, err := exporter.All(bag)
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 0 {
		t.Fatalf("expected no file, got %v", results)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected %s to not be created, got %v", dir, err)
	}
}

func TestFileName(t *testing.T) {
	testCases := []struct {
		Topic    string
		Expected string
	}{
		{Topic: "/WS1/reco_stt", Expected: "WS1_reco_stt.csv"},
		{Topic: "/WS1/borderless/commands", Expected: "WS1_borderless_commands.csv"},
		{Topic: "chatter/", Expected: "chatter.csv"},
		{Topic: "/", Expected: "topic.csv"},
	}

	for _, testCase := range testCases {
		if actual := FileName(testCase.Topic); actual != testCase.Expected {
			t.Errorf("%s: expected %s, got %s", testCase.Topic, testCase.Expected, actual)
		}
	}
}

func TestParseCompression(t *testing.T) {
	testCases := []struct {
		Raw      string
		Expected Compression
		Fail     bool
	}{
		{Raw: "", Expected: CompressionNone},
		{Raw: "none", Expected: CompressionNone},
		{Raw: "ZSTD", Expected: CompressionZstd},
		{Raw: "gzip", Fail: true},
	}

	for _, testCase := range testCases {
		actual, err := ParseCompression(testCase.Raw)
		if testCase.Fail {
			if err == nil {
				t.Errorf("%q: expected to fail", testCase.Raw)
			}
			continue
		}

		if err != nil {
			t.Errorf("%q: %v", testCase.Raw, err)
		} else if actual != testCase.Expected {
			t.Errorf("%q: expected %s, got %s", testCase.Raw, testCase.Expected, actual)
		}
	}
}
