package jword

import (
	"fmt"

	"github.com/signalsfoundry/tdl-bridge/model"
)

// FieldPacker maps one quantized air-track record to the three payloads of a
// frame. Implementations must be pure: identical input always yields
// identical payloads, and out-of-contract input fails with a *PackingError
// rather than producing garbage bits or panicking.
//
// The production mapping is licensed and lives outside this module; it is
// injected at pipeline construction time. The open lab mapping is provided
// by the simpack package.
type FieldPacker interface {
	Pack(t model.AirTrack) ([WordsPerFrame]Payload, error)
}

// PackingError reports a record a packer refused. Since the quantizer clamps
// everything upstream, seeing one means an upstream contract was violated;
// callers drop the record, count it, and continue.
type PackingError struct {
	Field string
	Value int64
}

func (e *PackingError) Error() string {
	return fmt.Sprintf("field %s value %d outside packing contract", e.Field, e.Value)
}
