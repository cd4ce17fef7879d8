// Package topics maps the robot's topics to the schemas used to flatten their messages
// into CSV rows.
package topics

import (
	"errors"
	"fmt"
	"path"
	"sort"
)

// DefaultNamespace is the workstation namespace the robot publishes under.
const DefaultNamespace = "/WS1"

var (
	ErrUnsupportedTopic  = errors.New("topic not supported for CSV export")
	ErrMissingField      = errors.New("message field is missing")
	ErrInvalidField      = errors.New("message field has an unexpected type")
	ErrJointCountChanged = errors.New("joint count changed within the log")
)

// Schema flattens the messages of one topic. Columns doesn't include the timestamp column.
type Schema struct {
	// Name is the topic relative to the namespace.
	Name string
	// Type is the ROS message type the schema was written for.
	Type string

	columns func(first map[string]interface{}) ([]string, error)
	flatten func(msg map[string]interface{}, width int) ([]string, error)
}

// Columns returns the header derived from the first message of the log. first may be nil
// when the log has no message on the topic.
func (schema *Schema) Columns(first map[string]interface{}) ([]string, error) {
	return schema.columns(first)
}

// Flatten returns the row of msg. width is the number of columns returned by Columns, rows
// that don't fit it are rejected.
func (schema *Schema) Flatten(msg map[string]interface{}, width int) ([]string, error) {
	row, err := schema.flatten(msg, width)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", schema.Name, err)
	}

	if len(row) != width {
		return nil, fmt.Errorf("%s: row has %d columns, header has %d", schema.Name, len(row), width)
	}

	return row, nil
}

var schemas = []*Schema{
	{
		Name:    "attention",
		Type:    "std_msgs/String",
		columns: staticColumns("data"),
		flatten: flattenFields("data"),
	},
	{
		Name:    "attention_visual",
		Type:    "rosa_msgs/AttentionVisual",
		columns: staticColumns("id", "visual"),
		flatten: flattenFields("id", "visual"),
	},
	{
		Name:    "borderless/commands",
		Type:    "borderless_msgs/Command",
		columns: staticColumns("command", "text", "x", "y", "size", "r", "g", "b", "a", "r", "g", "b", "a"),
		flatten: flattenFields("command", "text", "x", "y", "size",
			"color_fill.r", "color_fill.g", "color_fill.b", "color_fill.a",
			"color_stroke.r", "color_stroke.g", "color_stroke.b", "color_stroke.a"),
	},
	{
		Name:    "reco_stt",
		Type:    "std_msgs/String",
		columns: staticColumns("data"),
		flatten: flattenFields("data"),
	},
	{
		Name:    "activebody",
		Type:    "kinect_msgs/Body",
		columns: bodyColumns,
		flatten: flattenBody,
	},
}

// Table is the dispatch table from full topic names to schemas.
type Table struct {
	namespace string
	schemas   map[string]*Schema
}

// NewTable builds the table for the topics published under namespace.
func NewTable(namespace string) *Table {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	namespace = path.Clean("/" + namespace)

	table := Table{
		namespace: namespace,
		schemas:   make(map[string]*Schema, len(schemas)),
	}
	for _, schema := range schemas {
		table.schemas[path.Join(namespace, schema.Name)] = schema
	}

	return &table
}

func (table *Table) Namespace() string {
	return table.namespace
}

// Lookup returns the schema of topic, or ErrUnsupportedTopic.
func (table *Table) Lookup(topic string) (*Schema, error) {
	schema, ok := table.schemas[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTopic, topic)
	}
	return schema, nil
}

func (table *Table) Supported(topic string) bool {
	_, ok := table.schemas[topic]
	return ok
}

// Topics returns the supported topics sorted by name.
func (table *Table) Topics() []string {
	topics := make([]string, 0, len(table.schemas))
	for topic := range table.schemas {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
