// Package export writes the supported topics of a bag into CSV files, one file per topic.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	rosbag "github.com/lherman-cs/rosa-bag"
	"github.com/lherman-cs/rosa-bag/internal/topics"
	"go.uber.org/zap"
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// ParseCompression accepts "", "none" and "zstd".
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(s)) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unsupported output compression %q. Available: [none, zstd]", s)
	}
}

// Source is the bag being exported.
type Source interface {
	ReadMessages(fn func(msg *rosbag.Message) error, topics ...string) error
	Info() (*rosbag.Info, error)
}

type Options struct {
	// Dir is the output directory, created when missing.
	Dir string
	// Name overrides the file name of a single topic export. When exporting all topics, it
	// is used as a prefix.
	Name        string
	Compression Compression
}

// Result describes a written CSV file. Rows doesn't count the header.
type Result struct {
	Topic string
	Path  string
	Rows  int
}

type Exporter struct {
	table  *topics.Table
	opts   Options
	logger *zap.Logger
}

func New(table *topics.Table, opts Options, logger *zap.Logger) *Exporter {
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}

	return &Exporter{
		table:  table,
		opts:   opts,
		logger: logger.With(zap.String("mod", "export")),
	}
}

// Topic exports a single topic. It fails before touching the file system when the topic
// isn't in the table.
func (exporter *Exporter) Topic(src Source, topic string) (Result, error) {
	schema, err := exporter.table.Lookup(topic)
	if err != nil {
		return Result{}, err
	}

	if err := exporter.mkdir(); err != nil {
		return Result{}, err
	}

	cf, err := createCSVFile(exporter.path(topic, false), topic, schema, exporter.opts.Compression)
	if err != nil {
		return Result{}, err
	}

	err = src.ReadMessages(cf.write, topic)
	if err != nil {
		cf.abort()
		return Result{}, err
	}

	if err := cf.finish(); err != nil {
		return Result{}, err
	}

	result := cf.result()
	exporter.logger.Info("finished creating csv file",
		zap.String("topic", topic), zap.String("path", result.Path), zap.Int("rows", result.Rows))
	return result, nil
}

// All exports every topic of the bag that is in the table, in a single pass over the bag.
// Other topics are skipped.
func (exporter *Exporter) All(src Source) ([]Result, error) {
	info, err := src.Info()
	if err != nil {
		return nil, err
	}

	var selected []string
	for _, topic := range info.TopicNames() {
		if !exporter.table.Supported(topic) {
			exporter.logger.Debug("skipping unsupported topic", zap.String("topic", topic))
			continue
		}
		selected = append(selected, topic)
	}

	if len(selected) == 0 {
		exporter.logger.Info("no supported topic in the bag")
		return nil, nil
	}

	if err := exporter.mkdir(); err != nil {
		return nil, err
	}

	files := make(map[string]*csvFile, len(selected))
	abortAll := func() {
		for _, cf := range files {
			cf.abort()
		}
	}

	for _, topic := range selected {
		schema, err := exporter.table.Lookup(topic)
		if err != nil {
			abortAll()
			return nil, err
		}

		cf, err := createCSVFile(exporter.path(topic, true), topic, schema, exporter.opts.Compression)
		if err != nil {
			abortAll()
			return nil, err
		}
		files[topic] = cf
	}

	err = src.ReadMessages(func(msg *rosbag.Message) error {
		return files[msg.Topic].write(msg)
	}, selected...)
	if err != nil {
		abortAll()
		return nil, err
	}

	results := make([]Result, 0, len(selected))
	for i, topic := range selected {
		cf := files[topic]
		if err := cf.finish(); err != nil {
			for _, rest := range selected[i+1:] {
				files[rest].abort()
			}
			return nil, err
		}

		result := cf.result()
		results = append(results, result)
		exporter.logger.Info("finished creating csv file",
			zap.String("topic", topic), zap.String("path", result.Path), zap.Int("rows", result.Rows))
	}

	return results, nil
}

func (exporter *Exporter) mkdir() error {
	if exporter.opts.Dir == "" {
		return nil
	}
	return os.MkdirAll(exporter.opts.Dir, 0o755)
}

// path returns the output path of topic. /WS1/reco_stt becomes WS1_reco_stt.csv.
func (exporter *Exporter) path(topic string, prefixed bool) string {
	name := FileName(topic)
	if exporter.opts.Name != "" {
		if prefixed {
			name = exporter.opts.Name + "_" + name
		} else {
			name = exporter.opts.Name
			if filepath.Ext(name) == "" {
				name += ".csv"
			}
		}
	}

	if exporter.opts.Compression == CompressionZstd {
		name += ".zst"
	}

	return filepath.Join(exporter.opts.Dir, name)
}

// FileName derives a CSV file name from a topic name.
func FileName(topic string) string {
	name := strings.Trim(topic, "/")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		name = "topic"
	}
	return name + ".csv"
}
