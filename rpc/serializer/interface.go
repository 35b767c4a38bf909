package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
)

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// New creates a serializer by name (json, gob, binary), optionally
// wrapped with the given compression
func New(name string, compression Compression) (IRPCSerializer, error) {
	var s IRPCSerializer
	switch name {
	case "json":
		s = NewJSONSerializer()
	case "gob":
		s = NewGOBSerializer()
	case "binary":
		s = NewBinarySerializer()
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
	return NewCompressedSerializer(s, compression)
}
