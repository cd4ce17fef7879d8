package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/k0kubun/pp"
	rosbag "github.com/lherman-cs/rosa-bag"
	"go.uber.org/zap"
)

type Style string

const (
	// StyleYAML prints messages the way ROS prints them, fields in definition order.
	StyleYAML Style = "yaml"
	// StylePP prints the decoded Go values with the pp pretty printer.
	StylePP Style = "pp"
)

func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(s)) {
	case "", StyleYAML:
		return StyleYAML, nil
	case StylePP:
		return StylePP, nil
	default:
		return "", fmt.Errorf("unsupported print style %q. Available: [yaml, pp]", s)
	}
}

// MessageSource is the bag being dumped.
type MessageSource interface {
	ReadMessages(fn func(msg *rosbag.Message) error, topics ...string) error
}

type TopicCount struct {
	Topic string
	Count int
}

// Summary holds the message counters of a dump, topics in the order they were first seen.
type Summary struct {
	Total  int
	Topics []TopicCount
}

func (summary *Summary) add(topic string) int {
	summary.Total++
	for i := range summary.Topics {
		if summary.Topics[i].Topic == topic {
			summary.Topics[i].Count++
			return summary.Topics[i].Count
		}
	}

	summary.Topics = append(summary.Topics, TopicCount{Topic: topic, Count: 1})
	return 1
}

type Dumper struct {
	style  Style
	logger *zap.Logger
}

// NewDumper creates a Dumper. color only applies to StylePP.
func NewDumper(style Style, color bool, logger *zap.Logger) *Dumper {
	pp.ColoringEnabled = color
	return &Dumper{
		style:  style,
		logger: logger.With(zap.String("mod", "inspect")),
	}
}

// Dump prints every message of topics, all topics when empty, followed by a summary.
func (dumper *Dumper) Dump(w io.Writer, src MessageSource, topics ...string) (Summary, error) {
	var summary Summary

	err := src.ReadMessages(func(msg *rosbag.Message) error {
		count := summary.add(msg.Topic)

		fmt.Fprintln(w)
		fmt.Fprintln(w, "# =======================================")
		fmt.Fprintf(w, "# topic:           %s\n", msg.Topic)
		fmt.Fprintf(w, "# msg_count:       %d\n", count)
		fmt.Fprintf(w, "# timestamp (sec): %d.%09d\n", msg.Time.Unix(), msg.Time.Nanosecond())
		fmt.Fprintln(w, "# - - -")

		return dumper.writeMessage(w, msg)
	}, topics...)
	if err != nil {
		return summary, err
	}

	dumper.logger.Debug("dumped messages", zap.Int("total", summary.Total))
	return summary, writeSummary(w, &summary)
}

func (dumper *Dumper) writeMessage(w io.Writer, msg *rosbag.Message) error {
	switch dumper.style {
	case StylePP:
		_, err := pp.Fprintln(w, msg.Data)
		return err
	default:
		return writeMessageYAML(w, &msg.Conn.MessageDefinition, msg.Data)
	}
}

func writeSummary(w io.Writer, summary *Summary) error {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("# ~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~\n")
	fmt.Fprintf(&b, "# Total messages found: %16d\n", summary.Total)
	b.WriteString("#\n")
	for _, topic := range summary.Topics {
		fmt.Fprintf(&b, "#    %-30s %4d\n", topic.Topic+":", topic.Count)
	}
	if summary.Total == 0 {
		b.WriteString("# NO MESSAGES FOUND IN THESE TOPICS\n")
	}
	b.WriteString("#\n")
	b.WriteString("# DONE.\n")
	b.WriteString("# ~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~\n")

	_, err := io.WriteString(w, b.String())
	return err
}
