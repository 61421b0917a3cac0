package types

import (
	"fmt"
	"strings"
)

// Validate checks the structural rules the authoring path guarantees before a
// lecture is stored: at least one module, test blocks made of text modules
// that all carry a question, and answer keys that point at real variants.
func (l *Lecture) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return ErrEmptyTitle
	}
	if len(l.Modules) == 0 {
		return ErrEmptyLecture
	}
	for i, m := range l.Modules {
		if err := ValidateModule(m); err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	return nil
}

// ValidateModule checks a single module and its questions.
func ValidateModule(m Module) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrBadRequest)
	}
	if strings.TrimSpace(m.Header().Title) == "" {
		return ErrEmptyTitle
	}
	switch m := m.(type) {
	case *TextModule:
		if m.Question != nil {
			return ValidateQuestion(m.Question)
		}
	case *TestBlockModule:
		if len(m.Modules) == 0 {
			return ErrEmptyTestBlock
		}
		for i, sub := range m.Modules {
			if sub == nil || sub.Question == nil {
				return fmt.Errorf("sub-module %d: %w", i, ErrTestBlockQuestion)
			}
			if err := ValidateModule(sub); err != nil {
				return fmt.Errorf("sub-module %d: %w", i, err)
			}
		}
	}
	return nil
}

// ValidateQuestion checks the answer key of a question against its variants.
func ValidateQuestion(q Question) error {
	switch q := q.(type) {
	case *MultipleChoiceQuestion:
		if len(q.Variants) == 0 {
			return ErrNoVariants
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Variants) {
			return ErrInvalidCorrectIndex
		}
	case *MultipleSelectQuestion:
		if len(q.Variants) == 0 {
			return ErrNoVariants
		}
	case *FreeResponseQuestion:
		if q.Checker != CheckerExactMatch {
			return ErrUnknownChecker
		}
	}
	return nil
}
