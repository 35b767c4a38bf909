package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
	"reflect"
	"strings"
	"testing"
	"time"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testRows creates n rows with an int, a string and a nullable float column
func testRows(n int) [][]common.Value {
	rows := make([][]common.Value, n)
	for i := range rows {
		f := common.MustValueOf(nil)
		if i%2 == 0 {
			f = common.MustValueOf(float64(i) / 4)
		}
		rows[i] = []common.Value{
			common.MustValueOf(i + 1),
			common.MustValueOf(fmt.Sprintf("row-%d", i+1)),
			f,
		}
	}
	return rows
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Execute request with arguments of every kind
		*common.NewExecuteRequest("SELECT * FROM t WHERE a = ? AND b = ?", []common.Value{
			common.MustValueOf(nil),
			common.MustValueOf(int64(-7)),
			common.MustValueOf(3.25),
			common.MustValueOf(true),
			common.MustValueOf("text"),
			common.MustValueOf([]byte{0, 1, 2}),
			common.MustValueOf(ts),
		}, 100),

		// Execute response with the first batch
		*common.NewExecuteResponse(42,
			[]common.ColumnInfo{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "VARCHAR"}, {Name: "score", Type: "DOUBLE"}},
			testRows(3), false, common.NoFinalRow, 1, -1),

		// Fetch request and the final empty response
		*common.NewFetchRequest(42, 4, 100),
		*common.NewFetchResponse(nil, 4, true, 3),

		// Close and ping
		*common.NewCloseRequest(42),
		*common.NewCloseResponse(fmt.Errorf("unknown result 42")),
		*common.NewPingRequest(),

		// Error response
		*common.NewErrorResponse("42000", "syntax error at or near FROM"),
	}
}

// normalize replaces empty slices with nil since not every format keeps the difference
func normalize(msg common.Message) common.Message {
	normValues := func(vs []common.Value) []common.Value {
		if len(vs) == 0 {
			return nil
		}
		out := make([]common.Value, len(vs))
		for i, v := range vs {
			if len(v.Bytes) == 0 {
				v.Bytes = nil
			}
			out[i] = v
		}
		return out
	}

	msg.Args = normValues(msg.Args)
	if len(msg.Columns) == 0 {
		msg.Columns = nil
	}
	if len(msg.Rows) == 0 {
		msg.Rows = nil
	} else {
		rows := make([][]common.Value, len(msg.Rows))
		for i, row := range msg.Rows {
			rows[i] = normValues(row)
		}
		msg.Rows = rows
	}
	return msg
}

// roundTrip serializes and deserializes a message
func roundTrip(t *testing.T, s IRPCSerializer, msg common.Message) common.Message {
	t.Helper()
	data, err := s.Serialize(msg)
	if err != nil {
		t.Fatalf("Failed to serialize %s message: %v", msg.MsgType, err)
	}
	var result common.Message
	if err := s.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize %s message: %v", msg.MsgType, err)
	}
	return result
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				result := roundTrip(t, serializer, msg)

				// Compare
				if !reflect.DeepEqual(normalize(msg), normalize(result)) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTPing; msgType++ {
				result := roundTrip(t, serializer, common.Message{MsgType: msgType})

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestRowValueTypes tests that row values keep their Go type
func TestRowValueTypes(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()
	row := []any{nil, int64(1), 2.5, false, "s", []byte("b"), ts}
	values, err := common.ValuesOf(row)
	if err != nil {
		t.Fatalf("ValuesOf failed: %v", err)
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			result := roundTrip(t, factory(), *common.NewFetchResponse([][]common.Value{values}, 1, false, common.NoFinalRow))
			if len(result.Rows) != 1 {
				t.Fatalf("Expected one row, got %d", len(result.Rows))
			}
			got := common.AnyOf(result.Rows[0])
			for i := range row {
				if want, ok := row[i].(time.Time); ok {
					if gt, ok := got[i].(time.Time); !ok || !gt.Equal(want) {
						t.Errorf("column %d: expected %v, got %v", i, want, got[i])
					}
					continue
				}
				if !reflect.DeepEqual(got[i], row[i]) {
					t.Errorf("column %d: expected %v (%T), got %v (%T)", i, row[i], row[i], got[i], got[i])
				}
			}
			if result.FinalRow != common.NoFinalRow {
				t.Errorf("Expected unknown final row, got %d", result.FinalRow)
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty args and rows but not nil",
			msg: common.Message{
				MsgType: common.MsgTFetch,
				Args:    []common.Value{},
				Rows:    [][]common.Value{},
				IsLast:  true,
			},
		},
		{
			name: "Rows with empty values",
			msg: common.Message{
				MsgType: common.MsgTFetch,
				Rows:    [][]common.Value{{}, {common.MustValueOf("")}, {common.MustValueOf([]byte{})}},
			},
		},
		{
			name: "Negative counters",
			msg: common.Message{
				MsgType:     common.MsgTExecute,
				FinalRow:    common.NoFinalRow,
				UpdateCount: -1,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := roundTrip(t, serializer, tc.msg)

			if (tc.msg.Args == nil) != (result.Args == nil) {
				t.Errorf("Args nil/non-nil mismatch: expected %v, got %v", tc.msg.Args, result.Args)
			}
			if (tc.msg.Rows == nil) != (result.Rows == nil) {
				t.Errorf("Rows nil/non-nil mismatch: expected %v, got %v", tc.msg.Rows, result.Rows)
			}
			if len(tc.msg.Rows) != len(result.Rows) {
				t.Fatalf("Row count mismatch: expected %d, got %d", len(tc.msg.Rows), len(result.Rows))
			}
			for i := range tc.msg.Rows {
				if len(tc.msg.Rows[i]) != len(result.Rows[i]) {
					t.Errorf("Row %d length mismatch: expected %d, got %d", i, len(tc.msg.Rows[i]), len(result.Rows[i]))
				}
			}
			if tc.msg.IsLast != result.IsLast {
				t.Errorf("IsLast mismatch: expected %v, got %v", tc.msg.IsLast, result.IsLast)
			}
			if tc.msg.FinalRow != result.FinalRow || tc.msg.UpdateCount != result.UpdateCount {
				t.Errorf("Counter mismatch: expected %d/%d, got %d/%d",
					tc.msg.FinalRow, tc.msg.UpdateCount, result.FinalRow, result.UpdateCount)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for query",
			data:        []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims query length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid row count",
			data:        []byte{1, 0, 0x40, 0xff, 0xff, 0xff, 0xff}, // Claims 4 billion rows
			expectError: true,
		},
		{
			name:        "Unknown value kind",
			data:        []byte{1, 0, 2, 0, 0, 0, 1, 99}, // One argument of kind 99
			expectError: true,
		},
		{
			name:        "Truncated int value",
			data:        []byte{1, 0, 2, 0, 0, 0, 1, byte(common.KindInt), 0, 0}, // Int value with 2 of 8 bytes
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestNew tests the serializer factory
func TestNew(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		for _, c := range []Compression{CompressionNone, CompressionSnappy, CompressionZstd, CompressionLZ4} {
			if _, err := New(name, c); err != nil {
				t.Errorf("New(%s, %s) failed: %v", name, c, err)
			}
		}
	}
	if _, err := New("xml", CompressionNone); err == nil {
		t.Error("New(xml) should fail")
	}
	if _, err := New("json", "brotli"); err == nil {
		t.Error("New(json, brotli) should fail")
	}
}

// TestCompressedSerializer tests every compression with small and large messages
func TestCompressedSerializer(t *testing.T) {
	large := *common.NewFetchResponse(testRows(500), 1, false, common.NoFinalRow)
	small := *common.NewPingRequest()

	for _, c := range []Compression{CompressionSnappy, CompressionZstd, CompressionLZ4} {
		t.Run(string(c), func(t *testing.T) {
			inner := NewBinarySerializer()
			s, err := NewCompressedSerializer(inner, c)
			if err != nil {
				t.Fatalf("NewCompressedSerializer failed: %v", err)
			}

			for _, msg := range []common.Message{small, large} {
				result := roundTrip(t, s, msg)
				if !reflect.DeepEqual(normalize(msg), normalize(result)) {
					t.Errorf("%s message doesn't match after round trip", msg.MsgType)
				}
			}

			// Large messages are actually compressed
			raw, _ := inner.Serialize(large)
			compressed, _ := s.Serialize(large)
			if len(compressed) >= len(raw) {
				t.Errorf("Expected compressed size below %d, got %d", len(raw), len(compressed))
			}
		})
	}
}

// TestCompressedSerializerMixed tests that a peer decodes every compression
func TestCompressedSerializerMixed(t *testing.T) {
	msg := *common.NewErrorResponse("XX000", strings.Repeat("internal error ", 100))
	reader, _ := NewCompressedSerializer(NewJSONSerializer(), CompressionZstd)

	for _, c := range []Compression{CompressionSnappy, CompressionZstd, CompressionLZ4} {
		writer, _ := NewCompressedSerializer(NewJSONSerializer(), c)
		data, err := writer.Serialize(msg)
		if err != nil {
			t.Fatalf("%s: serialize failed: %v", c, err)
		}
		var result common.Message
		if err := reader.Deserialize(data, &result); err != nil {
			t.Fatalf("%s: deserialize failed: %v", c, err)
		}
		if result.Err != msg.Err || result.SQLState != msg.SQLState {
			t.Errorf("%s: message doesn't match after round trip", c)
		}
	}

	var result common.Message
	for _, data := range [][]byte{{}, {9, 1, 2}, {3, 0}} {
		if err := reader.Deserialize(data, &result); err == nil {
			t.Errorf("Deserialize(%v) should fail", data)
		}
	}
}
