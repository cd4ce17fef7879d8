package topics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func staticColumns(names ...string) func(map[string]interface{}) ([]string, error) {
	return func(map[string]interface{}) ([]string, error) {
		return append([]string(nil), names...), nil
	}
}

// flattenFields extracts the given fields in order. Nested fields are addressed with dots.
func flattenFields(paths ...string) func(map[string]interface{}, int) ([]string, error) {
	return func(msg map[string]interface{}, width int) ([]string, error) {
		row := make([]string, len(paths))
		for i, p := range paths {
			v, err := lookup(msg, p)
			if err != nil {
				return nil, err
			}
			row[i] = FormatValue(v)
		}
		return row, nil
	}
}

const (
	bodyTrackedField = "IsTracked"
	bodyJointsField  = "Joints"
	// columns per joint: X, Y, Z and TrackingState
	jointWidth = 4
)

var jointFields = []string{"X", "Y", "Z", "TrackingState"}

func bodyColumns(first map[string]interface{}) ([]string, error) {
	columns := []string{bodyTrackedField}
	if first == nil {
		return columns, nil
	}

	joints, err := bodyJoints(first)
	if err != nil {
		return nil, err
	}

	for i := range joints {
		columns = append(columns,
			fmt.Sprintf("JoinType: %d x", i),
			fmt.Sprintf("JoinType: %d y", i),
			fmt.Sprintf("JoinType: %d z", i),
			fmt.Sprintf("JoinType: %d TrackingState", i),
		)
	}

	return columns, nil
}

func flattenBody(msg map[string]interface{}, width int) ([]string, error) {
	tracked, err := lookup(msg, bodyTrackedField)
	if err != nil {
		return nil, err
	}

	joints, err := bodyJoints(msg)
	if err != nil {
		return nil, err
	}

	if expected := (width - 1) / jointWidth; len(joints) != expected {
		return nil, fmt.Errorf("%w: got %d joints, header has %d", ErrJointCountChanged, len(joints), expected)
	}

	row := make([]string, 0, 1+len(joints)*jointWidth)
	row = append(row, FormatValue(tracked))
	for i, joint := range joints {
		for _, name := range jointFields {
			v, err := lookup(joint, name)
			if err != nil {
				return nil, fmt.Errorf("joint %d: %w", i, err)
			}
			row = append(row, FormatValue(v))
		}
	}

	return row, nil
}

func bodyJoints(msg map[string]interface{}) ([]map[string]interface{}, error) {
	v, err := lookup(msg, bodyJointsField)
	if err != nil {
		return nil, err
	}

	joints, ok := v.([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrInvalidField, bodyJointsField, v)
	}

	return joints, nil
}

// lookup resolves a dotted path in a decoded message.
func lookup(msg map[string]interface{}, path string) (interface{}, error) {
	var cur interface{} = msg
	for _, name := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T", ErrInvalidField, path, cur)
		}

		cur, ok = m[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, path)
		}
	}

	return cur, nil
}

// FormatValue renders a decoded field as a CSV cell. Times are rendered as nanoseconds since
// the Unix epoch, floats with the shortest representation that round trips.
func FormatValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return strconv.FormatInt(v.UnixNano(), 10)
	case time.Duration:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprint(v)
	}
}
