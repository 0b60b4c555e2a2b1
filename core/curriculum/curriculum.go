// Package curriculum holds the unit progression and lesson naming rules of the curriculum program.
package curriculum

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/ratiba/core"
)

const (
	// ProgramCurriculum is the only program type whose lessons are auto-named.
	ProgramCurriculum = "GrapeSEED"

	FirstUnit   = "U1"
	MaxUnit     = 30
	LessonCount = 40

	// TransitionsKey is the class metadata key holding the unit transition log.
	TransitionsKey = "unit_transitions"
)

var (
	unitRegex        = regexp.MustCompile(`^U(\d+)$`)
	lessonIndexRegex = regexp.MustCompile(`^L([1-9]\d*)$`)
	lessonSuffix     = regexp.MustCompile(`\.L(\d+)$`)
)

func unitNumber(unit string) (int, bool) {
	m := unitRegex.FindStringSubmatch(strings.TrimSpace(unit))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextUnit is the class-creation policy: one unit ahead, never past U30.
func NextUnit(unit string) string {
	n, ok := unitNumber(unit)
	if !ok {
		return FirstUnit
	}
	n++
	if n > MaxUnit {
		n = MaxUnit
	}
	return fmt.Sprintf("U%d", n)
}

// SuggestTransitionUnit is the manual-transition policy: two units ahead, uncapped.
// It deliberately differs from NextUnit; both are in use.
func SuggestTransitionUnit(unit string) string {
	n, ok := unitNumber(unit)
	if !ok {
		return FirstUnit
	}
	return fmt.Sprintf("U%d", n+2)
}

// IsUnit reports whether s looks like U<n>.
func IsUnit(s string) bool {
	_, ok := unitNumber(s)
	return ok
}

// LessonIndexes returns L1..L40.
func LessonIndexes() []string {
	idx := make([]string, 0, LessonCount)
	for i := 1; i <= LessonCount; i++ {
		idx = append(idx, fmt.Sprintf("L%d", i))
	}
	return idx
}

// IsLessonIndex reports whether s is one of LessonIndexes.
func IsLessonIndex(s string) bool {
	m := lessonIndexRegex.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	n, _ := strconv.Atoi(m[1])
	return n <= LessonCount
}

// LessonName resolves <ClassName>.<Unit>.<LessonIndex> for curriculum classes.
// An empty result means the lesson has to be named by hand.
func LessonName(className, programType, unit, lessonIndex string) string {
	unit = strings.TrimSpace(unit)
	lessonIndex = strings.TrimSpace(lessonIndex)
	if programType != ProgramCurriculum || unit == "" || lessonIndex == "" {
		return ""
	}
	return strings.TrimSpace(className) + "." + unit + "." + lessonIndex
}

// LessonID qualifies a lesson with the class's persisted unit, giving <Unit>.L<n>.
// An explicit lessonNumber ("L3" or "3") wins over a ".L<n>" suffix found in name.
// The result is empty when no lesson number can be found or currentUnit is empty.
func LessonID(name, lessonNumber, currentUnit string) string {
	currentUnit = strings.TrimSpace(currentUnit)
	if currentUnit == "" {
		return ""
	}
	n := strings.TrimPrefix(strings.TrimSpace(lessonNumber), "L")
	if n == "" {
		m := lessonSuffix.FindStringSubmatch(strings.TrimSpace(name))
		if m == nil {
			return ""
		}
		n = m[1]
	}
	if _, err := strconv.Atoi(n); err != nil {
		return ""
	}
	return currentUnit + ".L" + n
}

// UnitTransition is one entry of a class's append-only unit history.
type UnitTransition struct {
	FromUnit       string    `json:"from_unit"`
	ToUnit         string    `json:"to_unit"`
	TransitionDate string    `json:"transition_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// Transitions reads the transition log out of class metadata. Malformed entries are skipped.
func Transitions(meta core.Metadata) []UnitTransition {
	raw, ok := meta[TransitionsKey].([]interface{})
	if !ok {
		if typed, ok := meta[TransitionsKey].([]UnitTransition); ok {
			return append([]UnitTransition(nil), typed...)
		}
		return []UnitTransition{}
	}
	out := make([]UnitTransition, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case UnitTransition:
			out = append(out, v)
		case map[string]interface{}:
			tr := UnitTransition{
				FromUnit:       stringField(v, "from_unit"),
				ToUnit:         stringField(v, "to_unit"),
				TransitionDate: stringField(v, "transition_date"),
			}
			if ts, err := time.Parse(time.RFC3339Nano, stringField(v, "created_at")); err == nil {
				tr.CreatedAt = ts
			}
			out = append(out, tr)
		}
	}
	return out
}

// AppendTransition returns a copy of meta with tr appended to the log.
// Earlier entries are kept verbatim, including ones Transitions cannot read.
func AppendTransition(meta core.Metadata, tr UnitTransition) core.Metadata {
	out := meta.Clone()
	if out == nil {
		out = make(core.Metadata, 1)
	}
	var entries []interface{}
	switch v := meta[TransitionsKey].(type) {
	case nil:
	case []interface{}:
		entries = make([]interface{}, 0, len(v)+1)
		entries = append(entries, v...)
	case []UnitTransition:
		entries = make([]interface{}, 0, len(v)+1)
		for _, e := range v {
			entries = append(entries, e)
		}
	default:
		entries = []interface{}{v}
	}
	out[TransitionsKey] = append(entries, tr)
	return out
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
