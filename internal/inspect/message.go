package inspect

import (
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	rosbag "github.com/lherman-cs/rosa-bag"
	"github.com/lherman-cs/rosa-bag/internal/topics"
	"go.yaml.in/yaml/v3"
)

func writeMessageYAML(w io.Writer, def *rosbag.MessageDefinition, data map[string]interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(messageNode(def, data)); err != nil {
		return err
	}
	return enc.Close()
}

// messageNode builds a mapping with the fields of def in definition order. Constants are
// left out, like rospy does.
func messageNode(def *rosbag.MessageDefinition, data map[string]interface{}) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, field := range def.Fields {
		if field.Value != nil {
			continue
		}

		v, ok := data[field.Name]
		if !ok {
			continue
		}

		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: field.Name}
		node.Content = append(node.Content, key, valueNode(field, v))
	}

	if len(node.Content) == 0 {
		node.Style = yaml.FlowStyle
	}
	return node
}

func valueNode(field *rosbag.MessageFieldDefinition, v interface{}) *yaml.Node {
	if field.Type == rosbag.MessageFieldTypeComplex {
		if field.IsArray {
			seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			items, _ := v.([]map[string]interface{})
			for _, item := range items {
				seq.Content = append(seq.Content, messageNode(field.MsgType, item))
			}
			if len(seq.Content) == 0 {
				seq.Style = yaml.FlowStyle
			}
			return seq
		}

		m, _ := v.(map[string]interface{})
		return messageNode(field.MsgType, m)
	}

	if field.IsArray {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		items := reflect.ValueOf(v)
		if items.Kind() == reflect.Slice {
			for i := 0; i < items.Len(); i++ {
				seq.Content = append(seq.Content, scalarNode(items.Index(i).Interface()))
			}
		}
		return seq
	}

	return scalarNode(v)
}

func scalarNode(v interface{}) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: topics.FormatValue(v)}
	switch v := v.(type) {
	case string:
		node.Tag = "!!str"
	case bool:
		node.Tag = "!!bool"
	case float32, float64:
		node.Tag = "!!float"
		// keep floats resolvable as floats without an explicit tag
		if !strings.ContainsAny(node.Value, ".eEIN") {
			node.Value += ".0"
		}
	case time.Time:
		return stampNode(v.Unix(), int64(v.Nanosecond()))
	case time.Duration:
		return stampNode(int64(v/time.Second), int64(v%time.Second))
	default:
		node.Tag = "!!int"
	}
	return node
}

// stampNode renders times and durations as secs/nsecs pairs.
func stampNode(secs, nsecs int64) *yaml.Node {
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "secs"},
			{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(secs, 10)},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "nsecs"},
			{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(nsecs, 10)},
		},
	}
}
