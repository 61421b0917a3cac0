package types

import (
	"sort"
	"strconv"
	"strings"
)

// QuestionKind is the stored tag of a question variant.
type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionMultipleSelect QuestionKind = "multiple_select"
	QuestionFreeResponse   QuestionKind = "free_response"
)

// Checker names the comparison used for free response answers.
type Checker string

const (
	CheckerExactMatch Checker = "exact_match"
)

// Question is a closed sum type: *MultipleChoiceQuestion,
// *MultipleSelectQuestion or *FreeResponseQuestion.
type Question interface {
	Kind() QuestionKind
	QuestionID() int64
	// Check grades a raw response string.
	Check(response string) bool
	isQuestion()
}

// MultipleChoiceQuestion has exactly one correct variant. Responses are the
// decimal index of the chosen variant.
type MultipleChoiceQuestion struct {
	ID            int64
	Variants      []string
	CorrectAnswer int
}

// SelectVariant is one option of a multiple select question.
type SelectVariant struct {
	Text    string
	Correct bool
}

// MultipleSelectQuestion accepts any subset of variants. Responses are comma
// separated variant indices; order and duplicates do not matter.
type MultipleSelectQuestion struct {
	ID       int64
	Variants []SelectVariant
}

// FreeResponseQuestion compares the response text with CorrectAnswer using Checker.
type FreeResponseQuestion struct {
	ID            int64
	CorrectAnswer string
	Checker       Checker
}

func (q *MultipleChoiceQuestion) Kind() QuestionKind { return QuestionMultipleChoice }
func (q *MultipleSelectQuestion) Kind() QuestionKind { return QuestionMultipleSelect }
func (q *FreeResponseQuestion) Kind() QuestionKind   { return QuestionFreeResponse }

func (q *MultipleChoiceQuestion) QuestionID() int64 { return q.ID }
func (q *MultipleSelectQuestion) QuestionID() int64 { return q.ID }
func (q *FreeResponseQuestion) QuestionID() int64   { return q.ID }

func (*MultipleChoiceQuestion) isQuestion() {}
func (*MultipleSelectQuestion) isQuestion() {}
func (*FreeResponseQuestion) isQuestion()   {}

func (q *MultipleChoiceQuestion) Check(response string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(response))
	if err != nil {
		return false
	}
	return n == q.CorrectAnswer
}

func (q *MultipleSelectQuestion) Check(response string) bool {
	chosen, ok := parseIndexSet(response, len(q.Variants))
	if !ok {
		return false
	}
	for i, v := range q.Variants {
		if v.Correct != chosen[i] {
			return false
		}
	}
	return true
}

func (q *FreeResponseQuestion) Check(response string) bool {
	switch q.Checker {
	case CheckerExactMatch:
		return response == q.CorrectAnswer
	default:
		return false
	}
}

// CorrectIndices lists the correct variant positions in ascending order.
func (q *MultipleSelectQuestion) CorrectIndices() []int {
	var out []int
	for i, v := range q.Variants {
		if v.Correct {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func parseIndexSet(response string, n int) (map[int]bool, bool) {
	set := make(map[int]bool)
	response = strings.TrimSpace(response)
	if response == "" {
		return set, true
	}
	for _, part := range strings.Split(response, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || i < 0 || i >= n {
			return nil, false
		}
		set[i] = true
	}
	return set, true
}
