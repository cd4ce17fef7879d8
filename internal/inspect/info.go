// Package inspect renders bags for manual inspection: the summary printed by --info and the
// message dump printed by --print.
package inspect

import (
	"io"
	"strconv"

	rosbag "github.com/lherman-cs/rosa-bag"
	"go.yaml.in/yaml/v3"
)

// seconds keeps a fixed number of decimals, yaml would switch to exponents for timestamps.
type seconds float64

func (s seconds) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!float",
		Value: strconv.FormatFloat(float64(s), 'f', 6, 64),
	}, nil
}

type infoDocument struct {
	Path        string             `yaml:"path,omitempty"`
	Version     string             `yaml:"version"`
	Duration    seconds            `yaml:"duration"`
	Start       seconds            `yaml:"start"`
	End         seconds            `yaml:"end"`
	Size        int64              `yaml:"size"`
	Messages    int                `yaml:"messages"`
	Indexed     bool               `yaml:"indexed"`
	Compression rosbag.Compression `yaml:"compression"`
	Types       []rosbag.TypeInfo  `yaml:"types"`
	Topics      []rosbag.TopicInfo `yaml:"topics"`
}

// WriteInfo writes info as a YAML document.
func WriteInfo(w io.Writer, info *rosbag.Info) error {
	doc := infoDocument{
		Path:        info.Path,
		Version:     info.Version,
		Duration:    seconds(info.Duration),
		Start:       seconds(info.Start),
		End:         seconds(info.End),
		Size:        info.Size,
		Messages:    info.Messages,
		Indexed:     info.Indexed,
		Compression: info.Compression,
		Types:       info.Types,
		Topics:      info.Topics,
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}
