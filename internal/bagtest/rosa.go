package bagtest

import (
	"time"
)

// Message definitions of the ROSA robot topics, as recorded in the connection headers.
const (
	StringType = "std_msgs/String"
	StringDef  = "string data\n"

	VisualType = "rosa_msgs/AttentionVisual"
	VisualDef  = "string id\nstring visual\n"

	CommandType = "borderless_msgs/Command"
	CommandDef  = `string command
string text
float32 x
float32 y
float32 size
std_msgs/ColorRGBA color_fill
std_msgs/ColorRGBA color_stroke
================================================================================
MSG: std_msgs/ColorRGBA
float32 r
float32 g
float32 b
float32 a
`

	BodyType = "kinect_msgs/Body"
	BodyDef  = `# Kinect body frame
bool IsTracked
Joint[] Joints
uint8 JOINT_COUNT=25
================================================================================
MSG: kinect_msgs/Joint
float32 X
float32 Y
float32 Z
int32 TrackingState
`
)

// Color is a std_msgs/ColorRGBA.
type Color struct {
	R, G, B, A float32
}

// Joint is a kinect_msgs/Joint.
type Joint struct {
	X, Y, Z       float32
	TrackingState int32
}

func StringPayload(data string) []byte {
	return NewPayload().String(data).Bytes()
}

func VisualPayload(id, visual string) []byte {
	return NewPayload().String(id).String(visual).Bytes()
}

func CommandPayload(command, text string, x, y, size float32, fill, stroke Color) []byte {
	p := NewPayload().String(command).String(text).Float32(x).Float32(y).Float32(size)
	for _, c := range []Color{fill, stroke} {
		p.Float32(c.R).Float32(c.G).Float32(c.B).Float32(c.A)
	}
	return p.Bytes()
}

func BodyPayload(tracked bool, joints ...Joint) []byte {
	p := NewPayload().Bool(tracked).Len(len(joints))
	for _, j := range joints {
		p.Float32(j.X).Float32(j.Y).Float32(j.Z).Int32(j.TrackingState)
	}
	return p.Bytes()
}

// Session builds a bag with every ROSA topic under /WS1 plus an unsupported /rosout topic.
// Each supported topic gets n messages, bodies have joints joints.
func Session(n, joints int) *Builder {
	b := New().
		Connection(0, "/WS1/attention", StringType, StringDef).
		Connection(1, "/WS1/attention_visual", VisualType, VisualDef).
		Connection(2, "/WS1/borderless/commands", CommandType, CommandDef).
		Connection(3, "/WS1/reco_stt", StringType, StringDef).
		Connection(4, "/WS1/activebody", BodyType, BodyDef).
		Connection(5, "/rosout", StringType, StringDef)

	start := time.Unix(1600000000, 0)
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * 100 * time.Millisecond)
		body := make([]Joint, joints)
		for j := range body {
			body[j] = Joint{X: float32(j), Y: 0.5, Z: -1.25, TrackingState: 2}
		}

		b.Message(0, t, StringPayload("look"))
		b.Message(1, t, VisualPayload("face", "smile, big"))
		b.Message(2, t, CommandPayload("draw", "hello", 1.5, 2, 12, Color{1, 0, 0, 1}, Color{0, 0, 1, 0.5}))
		b.Message(3, t, StringPayload("bonjour"))
		b.Message(4, t, BodyPayload(true, body...))
		b.Message(5, t, StringPayload("noise"))
	}

	return b
}
