package types

import (
	"bytes"
	"database/sql"
	"fmt"
)

// GateState is the tri-state "current module started" flag of a started lecture.
//
//	GateNone   - the module has nothing to gate and is simply visible (JSON null)
//	GateClosed - the module is gated and not yet opened to viewers (JSON false)
//	GateOpen   - the presenter opened the module for interaction (JSON true)
type GateState uint8

const (
	GateNone GateState = iota
	GateClosed
	GateOpen
)

// Visible reports whether viewers may see the current module's content.
func (g GateState) Visible() bool {
	return g != GateClosed
}

func (g GateState) String() string {
	switch g {
	case GateClosed:
		return "closed"
	case GateOpen:
		return "open"
	default:
		return "none"
	}
}

func (g GateState) MarshalJSON() ([]byte, error) {
	switch g {
	case GateClosed:
		return []byte("false"), nil
	case GateOpen:
		return []byte("true"), nil
	default:
		return []byte("null"), nil
	}
}

func (g *GateState) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "null":
		*g = GateNone
	case "false":
		*g = GateClosed
	case "true":
		*g = GateOpen
	default:
		return fmt.Errorf("invalid gate state %s", data)
	}
	return nil
}

// NullBool converts the gate into its nullable column representation.
func (g GateState) NullBool() sql.NullBool {
	switch g {
	case GateClosed:
		return sql.NullBool{Bool: false, Valid: true}
	case GateOpen:
		return sql.NullBool{Bool: true, Valid: true}
	default:
		return sql.NullBool{}
	}
}

// GateFromNullBool is the inverse of NullBool.
func GateFromNullBool(b sql.NullBool) GateState {
	if !b.Valid {
		return GateNone
	}
	if b.Bool {
		return GateOpen
	}
	return GateClosed
}
