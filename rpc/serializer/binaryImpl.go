package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
	"math"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasQuery       uint16 = 1 << 0
	hasArgs        uint16 = 1 << 1
	hasResultID    uint16 = 1 << 2
	hasBeginRow    uint16 = 1 << 3
	hasFetchSize   uint16 = 1 << 4
	hasColumns     uint16 = 1 << 5
	hasRows        uint16 = 1 << 6
	hasIsLast      uint16 = 1 << 7
	hasFinalRow    uint16 = 1 << 8
	hasParamRows   uint16 = 1 << 9
	hasUpdateCount uint16 = 1 << 10
	hasSQLState    uint16 = 1 << 11
	hasErr         uint16 = 1 << 12
)

// headerSize is 1 byte MsgType + 2 bytes flags
const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Allocate once with the exact size
	result := make([]byte, headerSize, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags
	var flags uint16 = 0

	// Handle Query
	if msg.Query != "" {
		flags |= hasQuery
		result = appendString(result, msg.Query)
	}

	// Handle Args
	if msg.Args != nil {
		flags |= hasArgs
		result = appendValues(result, msg.Args)
	}

	// Handle the integer fields
	if msg.ResultID != 0 {
		flags |= hasResultID
		result = binary.BigEndian.AppendUint64(result, msg.ResultID)
	}
	if msg.BeginRow != 0 {
		flags |= hasBeginRow
		result = binary.BigEndian.AppendUint64(result, uint64(msg.BeginRow))
	}
	if msg.FetchSize != 0 {
		flags |= hasFetchSize
		result = binary.BigEndian.AppendUint64(result, uint64(msg.FetchSize))
	}

	// Handle Columns
	if msg.Columns != nil {
		flags |= hasColumns
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Columns)))
		for _, col := range msg.Columns {
			result = appendString(result, col.Name)
			result = appendString(result, col.Type)
		}
	}

	// Handle Rows
	if msg.Rows != nil {
		flags |= hasRows
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Rows)))
		for _, row := range msg.Rows {
			result = appendValues(result, row)
		}
	}

	// IsLast is encoded in the flags only
	if msg.IsLast {
		flags |= hasIsLast
	}

	if msg.FinalRow != 0 {
		flags |= hasFinalRow
		result = binary.BigEndian.AppendUint64(result, uint64(msg.FinalRow))
	}
	if msg.ParamRows != 0 {
		flags |= hasParamRows
		result = binary.BigEndian.AppendUint64(result, uint64(msg.ParamRows))
	}
	if msg.UpdateCount != 0 {
		flags |= hasUpdateCount
		result = binary.BigEndian.AppendUint64(result, uint64(msg.UpdateCount))
	}

	// Handle SQLState and Err
	if msg.SQLState != "" {
		flags |= hasSQLState
		result = appendString(result, msg.SQLState)
	}
	if msg.Err != "" {
		flags |= hasErr
		result = appendString(result, msg.Err)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	// Start from an empty message
	*msg = common.Message{}

	// Read message type and flags
	msg.MsgType = common.MessageType(data[0])
	flags := binary.BigEndian.Uint16(data[1:3])

	r := &binaryReader{data: data, pos: headerSize}

	if flags&hasQuery != 0 {
		msg.Query = r.readString("query")
	}
	if flags&hasArgs != 0 {
		msg.Args = r.readValues("args")
	}
	if flags&hasResultID != 0 {
		msg.ResultID = r.readUint64("result id")
	}
	if flags&hasBeginRow != 0 {
		msg.BeginRow = int64(r.readUint64("begin row"))
	}
	if flags&hasFetchSize != 0 {
		msg.FetchSize = int64(r.readUint64("fetch size"))
	}

	if flags&hasColumns != 0 {
		n := r.readCount("columns", 8)
		msg.Columns = make([]common.ColumnInfo, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			name := r.readString("column name")
			typ := r.readString("column type")
			msg.Columns = append(msg.Columns, common.ColumnInfo{Name: name, Type: typ})
		}
	}

	if flags&hasRows != 0 {
		n := r.readCount("rows", 4)
		msg.Rows = make([][]common.Value, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Rows = append(msg.Rows, r.readValues("row"))
		}
	}

	msg.IsLast = flags&hasIsLast != 0

	if flags&hasFinalRow != 0 {
		msg.FinalRow = int64(r.readUint64("final row"))
	}
	if flags&hasParamRows != 0 {
		msg.ParamRows = int64(r.readUint64("parameter rows"))
	}
	if flags&hasUpdateCount != 0 {
		msg.UpdateCount = int64(r.readUint64("update count"))
	}
	if flags&hasSQLState != 0 {
		msg.SQLState = r.readString("sql state")
	}
	if flags&hasErr != 0 {
		msg.Err = r.readString("error")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	// Add sizes for fields that require length encoding
	if msg.Query != "" {
		size += 4 + len(msg.Query)
	}
	if msg.Args != nil {
		size += valuesSize(msg.Args)
	}
	for _, set := range []bool{msg.ResultID != 0, msg.BeginRow != 0, msg.FetchSize != 0,
		msg.FinalRow != 0, msg.ParamRows != 0, msg.UpdateCount != 0} {
		if set {
			size += 8
		}
	}
	if msg.Columns != nil {
		size += 4
		for _, col := range msg.Columns {
			size += 8 + len(col.Name) + len(col.Type)
		}
	}
	if msg.Rows != nil {
		size += 4
		for _, row := range msg.Rows {
			size += valuesSize(row)
		}
	}
	if msg.SQLState != "" {
		size += 4 + len(msg.SQLState)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	return size
}

// valuesSize returns the encoded size of a value list
func valuesSize(values []common.Value) int {
	size := 4
	for _, v := range values {
		size++ // kind
		switch v.Kind {
		case common.KindInt, common.KindBool, common.KindTime, common.KindFloat:
			size += 8
		case common.KindString:
			size += 4 + len(v.Str)
		case common.KindBytes:
			size += 4 + len(v.Bytes)
		}
	}
	return size
}

// appendString writes a length prefixed string
func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// appendValues writes a count prefixed list of values
func appendValues(buf []byte, values []common.Value) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(values)))
	for _, v := range values {
		buf = append(buf, byte(v.Kind))
		switch v.Kind {
		case common.KindInt, common.KindBool, common.KindTime:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v.Int))
		case common.KindFloat:
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v.Float))
		case common.KindString:
			buf = appendString(buf, v.Str)
		case common.KindBytes:
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v.Bytes)))
			buf = append(buf, v.Bytes...)
		}
	}
	return buf
}

// binaryReader reads fields from a buffer and keeps the first error
type binaryReader struct {
	data []byte
	pos  int
	err  error
}

// need checks that n more bytes are available
func (r *binaryReader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *binaryReader) readUint32(field string) uint32 {
	if !r.need(4, field) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *binaryReader) readUint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

// count reads a list length and checks it against the remaining data,
// minSize is the smallest encoded size of one element
func (r *binaryReader) readCount(field string, minSize int) int {
	n := int(r.readUint32(field + " length"))
	if r.err == nil && n*minSize > len(r.data)-r.pos {
		r.err = fmt.Errorf("data too short for %d %s", n, field)
		return 0
	}
	return n
}

func (r *binaryReader) readBytes(field string) []byte {
	n := int(r.readUint32(field + " length"))
	if !r.need(n, field) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}

func (r *binaryReader) readString(field string) string {
	return string(r.readBytes(field))
}

func (r *binaryReader) readValues(field string) []common.Value {
	n := r.readCount(field, 1)
	values := make([]common.Value, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		if !r.need(1, field+" value kind") {
			break
		}
		v := common.Value{Kind: common.ValueKind(r.data[r.pos])}
		r.pos++
		switch v.Kind {
		case common.KindNull:
		case common.KindInt, common.KindBool, common.KindTime:
			v.Int = int64(r.readUint64(field + " value"))
		case common.KindFloat:
			v.Float = math.Float64frombits(r.readUint64(field + " value"))
		case common.KindString:
			v.Str = r.readString(field + " value")
		case common.KindBytes:
			v.Bytes = r.readBytes(field + " value")
		default:
			r.err = fmt.Errorf("unknown value kind %d in %s", v.Kind, field)
		}
		values = append(values, v)
	}
	return values
}
