package types

import (
	"time"
)

// ModuleKind is the stored tag of a module variant.
type ModuleKind string

const (
	ModuleText      ModuleKind = "text"
	ModuleVisual    ModuleKind = "visual"
	ModuleTestBlock ModuleKind = "test_block"
)

// ModuleHeader carries the fields every module variant shares.
type ModuleHeader struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	AuthorID  int64
	CourseID  int64
}

// Module is a closed sum type: *TextModule, *VisualModule or *TestBlockModule.
// Consumers select behavior with a type switch.
type Module interface {
	Kind() ModuleKind
	Header() *ModuleHeader
	isModule()
}

// TextModule is body text with an optional question.
type TextModule struct {
	ModuleHeader
	Text     string
	Question Question
}

// VisualModule has no text body and no question.
type VisualModule struct {
	ModuleHeader
}

// TestBlockModule is an ordered list of text modules, each with a question.
type TestBlockModule struct {
	ModuleHeader
	Modules []*TextModule
}

func (m *TextModule) Kind() ModuleKind      { return ModuleText }
func (m *VisualModule) Kind() ModuleKind    { return ModuleVisual }
func (m *TestBlockModule) Kind() ModuleKind { return ModuleTestBlock }

func (m *TextModule) Header() *ModuleHeader      { return &m.ModuleHeader }
func (m *VisualModule) Header() *ModuleHeader    { return &m.ModuleHeader }
func (m *TestBlockModule) Header() *ModuleHeader { return &m.ModuleHeader }

func (*TextModule) isModule()      {}
func (*VisualModule) isModule()    {}
func (*TestBlockModule) isModule() {}

// HasGate reports whether viewers must wait for the presenter to open the
// module: text with a question and test blocks are gated, everything else is not.
func HasGate(m Module) bool {
	switch m := m.(type) {
	case *TextModule:
		return m.Question != nil
	case *TestBlockModule:
		return true
	default:
		return false
	}
}

// InitialGate is the gate state a module gets when the presenter navigates to it.
func InitialGate(m Module) GateState {
	if HasGate(m) {
		return GateClosed
	}
	return GateNone
}

// ModuleQuestions returns the questions of a module in lecture numbering order.
// A test block yields one entry per sub-module, nil where the sub-module has
// no question, so entry i always belongs to sub-module i.
func ModuleQuestions(m Module) []Question {
	switch m := m.(type) {
	case *TextModule:
		if m.Question != nil {
			return []Question{m.Question}
		}
	case *TestBlockModule:
		qs := make([]Question, 0, len(m.Modules))
		for _, sub := range m.Modules {
			var q Question
			if sub != nil {
				q = sub.Question
			}
			qs = append(qs, q)
		}
		return qs
	}
	return nil
}
