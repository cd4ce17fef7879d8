package rosbag

import (
	"math"
	"unsafe"
)

type fieldDecodeFunc func(raw []byte, length int) (v interface{}, off int, ok bool)

var fieldDecodeBasicHelper = map[MessageFieldType]fieldDecodeFunc{
	MessageFieldTypeBool:     fieldDecodeBool,
	MessageFieldTypeInt8:     fieldDecodeInt8,
	MessageFieldTypeUint8:    fieldDecodeUint8,
	MessageFieldTypeInt16:    fieldDecodeInt16,
	MessageFieldTypeUint16:   fieldDecodeUint16,
	MessageFieldTypeInt32:    fieldDecodeInt32,
	MessageFieldTypeUint32:   fieldDecodeUint32,
	MessageFieldTypeInt64:    fieldDecodeInt64,
	MessageFieldTypeUint64:   fieldDecodeUint64,
	MessageFieldTypeFloat32:  fieldDecodeFloat32,
	MessageFieldTypeFloat64:  fieldDecodeFloat64,
	MessageFieldTypeString:   fieldDecodeString,
	MessageFieldTypeTime:     fieldDecodeTime,
	MessageFieldTypeDuration: fieldDecodeDuration,
}

var fieldDecodeSliceHelper map[MessageFieldType]fieldDecodeFunc

// initFieldSliceDecoder picks the slice decoders. fastMode can only be used when the host
// byte order matches the bag byte order, numbers are then copied in bulk.
func initFieldSliceDecoder(fastMode bool) {
	fieldDecodeSliceHelper = map[MessageFieldType]fieldDecodeFunc{
		MessageFieldTypeBool:     fieldDecodeBoolSlice,
		MessageFieldTypeInt8:     sliceDecoder(1, fastMode, func(b []byte) int8 { return int8(b[0]) }),
		MessageFieldTypeUint8:    sliceDecoder(1, fastMode, func(b []byte) uint8 { return b[0] }),
		MessageFieldTypeInt16:    sliceDecoder(2, fastMode, func(b []byte) int16 { return int16(endian.Uint16(b)) }),
		MessageFieldTypeUint16:   sliceDecoder(2, fastMode, endian.Uint16),
		MessageFieldTypeInt32:    sliceDecoder(4, fastMode, func(b []byte) int32 { return int32(endian.Uint32(b)) }),
		MessageFieldTypeUint32:   sliceDecoder(4, fastMode, endian.Uint32),
		MessageFieldTypeInt64:    sliceDecoder(8, fastMode, func(b []byte) int64 { return int64(endian.Uint64(b)) }),
		MessageFieldTypeUint64:   sliceDecoder(8, fastMode, endian.Uint64),
		MessageFieldTypeFloat32:  sliceDecoder(4, fastMode, func(b []byte) float32 { return math.Float32frombits(endian.Uint32(b)) }),
		MessageFieldTypeFloat64:  sliceDecoder(8, fastMode, func(b []byte) float64 { return math.Float64frombits(endian.Uint64(b)) }),
		MessageFieldTypeString:   fieldDecodeStringSlice,
		MessageFieldTypeTime:     sliceDecoder(8, false, extractTime),
		MessageFieldTypeDuration: sliceDecoder(8, false, extractDuration),
	}
}

func fieldDecodeLength(raw []byte, fixedLength int) (length int, off int, ok bool) {
	if fixedLength >= 0 {
		ok = true
		length = fixedLength
		return
	}

	if len(raw) < lenInBytes {
		return
	}

	length = int(endian.Uint32(raw))
	if length < 0 || len(raw)-lenInBytes < length {
		return
	}

	ok = true
	off = lenInBytes
	return
}

func fieldDecodeFixed[T any](size int, get func([]byte) T) fieldDecodeFunc {
	return func(raw []byte, length int) (v interface{}, off int, ok bool) {
		off = size
		if len(raw) < off {
			return
		}

		v = get(raw)
		ok = true
		return
	}
}

var (
	fieldDecodeBool     = fieldDecodeFixed(1, func(b []byte) bool { return b[0] != 0 })
	fieldDecodeInt8     = fieldDecodeFixed(1, func(b []byte) int8 { return int8(b[0]) })
	fieldDecodeUint8    = fieldDecodeFixed(1, func(b []byte) uint8 { return b[0] })
	fieldDecodeInt16    = fieldDecodeFixed(2, func(b []byte) int16 { return int16(endian.Uint16(b)) })
	fieldDecodeUint16   = fieldDecodeFixed(2, func(b []byte) uint16 { return endian.Uint16(b) })
	fieldDecodeInt32    = fieldDecodeFixed(4, func(b []byte) int32 { return int32(endian.Uint32(b)) })
	fieldDecodeUint32   = fieldDecodeFixed(4, func(b []byte) uint32 { return endian.Uint32(b) })
	fieldDecodeInt64    = fieldDecodeFixed(8, func(b []byte) int64 { return int64(endian.Uint64(b)) })
	fieldDecodeUint64   = fieldDecodeFixed(8, func(b []byte) uint64 { return endian.Uint64(b) })
	fieldDecodeFloat32  = fieldDecodeFixed(4, func(b []byte) float32 { return math.Float32frombits(endian.Uint32(b)) })
	fieldDecodeFloat64  = fieldDecodeFixed(8, func(b []byte) float64 { return math.Float64frombits(endian.Uint64(b)) })
	fieldDecodeTime     = fieldDecodeFixed(8, extractTime)
	fieldDecodeDuration = fieldDecodeFixed(8, extractDuration)
)

// fieldDecodeString copies the string out of raw, raw belongs to a pooled record.
func fieldDecodeString(raw []byte, length int) (v interface{}, off int, ok bool) {
	length, off, ok = fieldDecodeLength(raw, length)
	if !ok {
		return
	}

	if len(raw)-off < length {
		ok = false
		return
	}

	v = string(raw[off : off+length])
	off += length
	return
}

// sliceDecoder decodes arrays of fixed size elements. In fastMode, raw is reinterpreted as
// []T and copied, otherwise every element goes through get.
func sliceDecoder[T any](size int, fastMode bool, get func([]byte) T) fieldDecodeFunc {
	return func(raw []byte, length int) (v interface{}, off int, ok bool) {
		length, off, ok = fieldDecodeLength(raw, length)
		if !ok {
			return
		}

		if length == 0 {
			v = []T{}
			return
		}

		if (len(raw)-off)/size < length {
			ok = false
			return
		}

		arr := make([]T, length)
		if fastMode {
			src := unsafe.Slice((*T)(unsafe.Pointer(&raw[off])), length)
			copy(arr, src)
			off += length * size
		} else {
			for i := range arr {
				arr[i] = get(raw[off:])
				off += size
			}
		}

		v = arr
		return
	}
}

func fieldDecodeBoolSlice(raw []byte, length int) (v interface{}, off int, ok bool) {
	length, off, ok = fieldDecodeLength(raw, length)
	if !ok {
		return
	}

	if len(raw)-off < length {
		ok = false
		return
	}

	arr := make([]bool, length)
	for i := range arr {
		arr[i] = raw[off+i] != 0
	}

	v = arr
	off += length
	return
}

func fieldDecodeStringSlice(raw []byte, length int) (v interface{}, off int, ok bool) {
	length, off, ok = fieldDecodeLength(raw, length)
	if !ok {
		return
	}

	// every string takes at least its length prefix
	if (len(raw)-off)/lenInBytes < length {
		ok = false
		return
	}

	s := make([]string, length)
	totalOff := off
	for i := 0; i < length; i++ {
		v, off, ok = fieldDecodeString(raw[totalOff:], -1)
		if !ok {
			off = 0
			return
		}

		s[i] = v.(string)
		totalOff += off
	}

	v = s
	off = totalOff
	ok = true
	return
}
