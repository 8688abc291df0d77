package discovery

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Scoring criterion type discriminators as they appear on the wire.
const (
	CriterionTypeBooleanCapability = "boolean_capability"
	CriterionTypeNumberCapability  = "number_capability"
	CriterionTypeStringCapability  = "string_capability"
	CriterionTypeDescription       = "description"
)

// transformationVariable is the single variable a number criterion's
// transformation expression may reference; it is bound to the capability's
// numeric value.
const transformationVariable = "x"

// ScoringCriterion converts one aspect of a device description into a score
// increment (positive) or decrement (negative). A criterion that does not
// apply to a description contributes 0 without error.
type ScoringCriterion interface {
	// Type returns the wire discriminator of the criterion.
	Type() string

	// ScoreIncrement calculates the criterion's contribution for the given
	// description. The scorer provides corpus access for criteria that
	// need scores relative to the whole candidate set.
	ScoreIncrement(d *DeviceDescription, scorer *CandidateDeviceScorer) float64

	// validate extends errs with the criterion's invalid fields.
	validate(errs *ValidationErrors, fieldPrefix string)
}

// StringOperator names the comparison a string capability criterion applies
// to a capability value. All operators compare case-insensitively.
type StringOperator string

// String operators.
const (
	OperatorEquals     StringOperator = "equals"
	OperatorContains   StringOperator = "contains"
	OperatorBeginsWith StringOperator = "begins_with"
	OperatorEndsWith   StringOperator = "ends_with"
	OperatorNotEquals  StringOperator = "not_equals"
)

// AllStringOperators returns every valid operator.
func AllStringOperators() []StringOperator {
	return []StringOperator{
		OperatorEquals,
		OperatorContains,
		OperatorBeginsWith,
		OperatorEndsWith,
		OperatorNotEquals,
	}
}

// IsValid reports whether the operator is one of the defined values.
func (o StringOperator) IsValid() bool {
	switch o {
	case OperatorEquals, OperatorContains, OperatorBeginsWith, OperatorEndsWith, OperatorNotEquals:
		return true
	default:
		return false
	}
}

// Matches applies the operator to a target value and a match string.
func (o StringOperator) Matches(target, match string) bool {
	t, m := strings.ToLower(target), strings.ToLower(match)
	switch o {
	case OperatorEquals:
		return t == m
	case OperatorContains:
		return strings.Contains(t, m)
	case OperatorBeginsWith:
		return strings.HasPrefix(t, m)
	case OperatorEndsWith:
		return strings.HasSuffix(t, m)
	case OperatorNotEquals:
		return t != m
	default:
		return false
	}
}

// BooleanCapabilityCriterion scores a boolean capability: it contributes
// one increment when the capability is true and another when it is false.
// An absent or non-boolean capability contributes 0.
type BooleanCapabilityCriterion struct {
	CapabilityName      string  `json:"capabilityName"`
	TrueScoreIncrement  float64 `json:"trueScoreIncrement"`
	FalseScoreIncrement float64 `json:"falseScoreIncrement"`
}

// Type implements ScoringCriterion.
func (c *BooleanCapabilityCriterion) Type() string { return CriterionTypeBooleanCapability }

// ScoreIncrement implements ScoringCriterion.
func (c *BooleanCapabilityCriterion) ScoreIncrement(d *DeviceDescription, _ *CandidateDeviceScorer) float64 {
	cap := d.Capability(c.CapabilityName)
	if cap == nil {
		return 0
	}
	val, ok := cap.Value.AsBoolean()
	if !ok {
		return 0
	}
	if val {
		return c.TrueScoreIncrement
	}
	return c.FalseScoreIncrement
}

func (c *BooleanCapabilityCriterion) validate(errs *ValidationErrors, fieldPrefix string) {
	if c.CapabilityName == "" {
		errs.Add(fieldPrefix+".capabilityName", "The capability name must not be empty.")
	}
}

// MarshalJSON adds the type discriminator to the encoded criterion.
func (c *BooleanCapabilityCriterion) MarshalJSON() ([]byte, error) {
	type plain BooleanCapabilityCriterion
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{Type: c.Type(), plain: (*plain)(c)})
}

// NumberCapabilityCriterion scores a numeric capability by evaluating a
// user-supplied arithmetic expression with the capability's value bound to
// the variable x. The expression's syntax is checked at template validation
// time; an evaluation failure at scoring time contributes 0 rather than
// propagating.
type NumberCapabilityCriterion struct {
	CapabilityName         string `json:"capabilityName"`
	TransformationFunction string `json:"transformationFunction"`

	compileOnce sync.Once
	program     *vm.Program
	compileErr  error
}

// Type implements ScoringCriterion.
func (c *NumberCapabilityCriterion) Type() string { return CriterionTypeNumberCapability }

// compile parses the transformation expression once; the compiled program
// is reused for every scored description.
func (c *NumberCapabilityCriterion) compile() (*vm.Program, error) {
	c.compileOnce.Do(func() {
		c.program, c.compileErr = expr.Compile(c.TransformationFunction,
			expr.Env(map[string]interface{}{transformationVariable: float64(0)}))
	})
	return c.program, c.compileErr
}

// ScoreIncrement implements ScoringCriterion.
func (c *NumberCapabilityCriterion) ScoreIncrement(d *DeviceDescription, _ *CandidateDeviceScorer) float64 {
	cap := d.Capability(c.CapabilityName)
	if cap == nil {
		return 0
	}
	val, ok := cap.Value.AsNumber()
	if !ok {
		return 0
	}

	program, err := c.compile()
	if err != nil {
		return 0
	}

	result, err := expr.Run(program, map[string]interface{}{transformationVariable: val})
	if err != nil {
		return 0
	}

	num, ok := asFloat(result)
	if !ok {
		return 0
	}
	return num
}

func (c *NumberCapabilityCriterion) validate(errs *ValidationErrors, fieldPrefix string) {
	if c.CapabilityName == "" {
		errs.Add(fieldPrefix+".capabilityName", "The capability name must not be empty.")
	}

	if c.TransformationFunction == "" {
		errs.Add(fieldPrefix+".transformationFunction", "The transformation function must not be empty.")
		return
	}

	// Throwaway evaluation: malformed expressions must surface at creation
	// time, not during scoring.
	program, err := c.compile()
	if err != nil {
		errs.Add(fieldPrefix+".transformationFunction", "The transformation function is not a valid expression.")
		return
	}
	result, err := expr.Run(program, map[string]interface{}{transformationVariable: float64(1)})
	if err != nil {
		errs.Add(fieldPrefix+".transformationFunction", "The transformation function cannot be evaluated.")
		return
	}
	if _, ok := asFloat(result); !ok {
		errs.Add(fieldPrefix+".transformationFunction", "The transformation function must yield a number.")
	}
}

// MarshalJSON adds the type discriminator to the encoded criterion.
func (c *NumberCapabilityCriterion) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type                   string `json:"type"`
		CapabilityName         string `json:"capabilityName"`
		TransformationFunction string `json:"transformationFunction"`
	}{Type: c.Type(), CapabilityName: c.CapabilityName, TransformationFunction: c.TransformationFunction})
}

// StringCapabilityCriterion scores a string capability: it contributes a
// fixed increment when the configured operator matches the capability value
// against the match string, 0 otherwise.
type StringCapabilityCriterion struct {
	CapabilityName string         `json:"capabilityName"`
	Operator       StringOperator `json:"operator"`
	Match          string         `json:"match"`
	Increment      float64        `json:"scoreIncrement"`
}

// Type implements ScoringCriterion.
func (c *StringCapabilityCriterion) Type() string { return CriterionTypeStringCapability }

// ScoreIncrement implements ScoringCriterion.
func (c *StringCapabilityCriterion) ScoreIncrement(d *DeviceDescription, _ *CandidateDeviceScorer) float64 {
	cap := d.Capability(c.CapabilityName)
	if cap == nil {
		return 0
	}
	val, ok := cap.Value.AsString()
	if !ok {
		return 0
	}
	if c.Operator.Matches(val, c.Match) {
		return c.Increment
	}
	return 0
}

func (c *StringCapabilityCriterion) validate(errs *ValidationErrors, fieldPrefix string) {
	if c.CapabilityName == "" {
		errs.Add(fieldPrefix+".capabilityName", "The capability name must not be empty.")
	}
	if !c.Operator.IsValid() {
		errs.Add(fieldPrefix+".operator", "A valid string operator must be provided.")
	}
	if c.Match == "" {
		errs.Add(fieldPrefix+".match", "The match string must not be empty.")
	}
}

// MarshalJSON adds the type discriminator to the encoded criterion.
func (c *StringCapabilityCriterion) MarshalJSON() ([]byte, error) {
	type plain StringCapabilityCriterion
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{Type: c.Type(), plain: (*plain)(c)})
}

// DescriptionCriterion scores a device's free-text description against a
// textual query, relative to the descriptions of all related candidates.
// An exactly matching description receives the full exact-match score;
// partial matches receive a corpus-relative fraction of it.
type DescriptionCriterion struct {
	Query           string  `json:"query"`
	ExactMatchScore float64 `json:"exactMatchScore"`
}

// Type implements ScoringCriterion.
func (c *DescriptionCriterion) Type() string { return CriterionTypeDescription }

// ScoreIncrement implements ScoringCriterion.
func (c *DescriptionCriterion) ScoreIncrement(d *DeviceDescription, scorer *CandidateDeviceScorer) float64 {
	if scorer == nil || d.Description == "" {
		return 0
	}
	corpus := scorer.Corpus()
	if corpus == nil {
		return 0
	}

	query := Tokenize(c.Query)
	if len(query) == 0 {
		return 0
	}

	doc := corpus.Document(d.MAC())
	if tokensEqual(query, doc) {
		return c.ExactMatchScore
	}

	relevance := corpus.BM25(query, d.MAC())
	if relevance <= 0 {
		return 0
	}
	// Squash unbounded BM25 relevance into (0, 1) so partial matches never
	// exceed the exact-match score.
	return c.ExactMatchScore * (relevance / (relevance + 1))
}

func (c *DescriptionCriterion) validate(errs *ValidationErrors, fieldPrefix string) {
	if c.Query == "" {
		errs.Add(fieldPrefix+".query", "The query must not be empty.")
	}
	if c.ExactMatchScore <= 0 {
		errs.Add(fieldPrefix+".exactMatchScore", "The score for exact matches must be greater than zero.")
	}
}

// MarshalJSON adds the type discriminator to the encoded criterion.
func (c *DescriptionCriterion) MarshalJSON() ([]byte, error) {
	type plain DescriptionCriterion
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{Type: c.Type(), plain: (*plain)(c)})
}

// ScoringCriteria is an ordered list of criteria with tagged-union JSON
// encoding.
type ScoringCriteria []ScoringCriterion

// UnmarshalJSON decodes a list of criteria, dispatching on each element's
// type discriminator.
func (sc *ScoringCriteria) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("scoring criteria: %w", err)
	}

	out := make(ScoringCriteria, 0, len(raw))
	for i, msg := range raw {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			return fmt.Errorf("scoring criterion %d: %w", i, err)
		}

		var criterion ScoringCriterion
		switch head.Type {
		case CriterionTypeBooleanCapability:
			criterion = &BooleanCapabilityCriterion{}
		case CriterionTypeNumberCapability:
			criterion = &NumberCapabilityCriterion{}
		case CriterionTypeStringCapability:
			criterion = &StringCapabilityCriterion{}
		case CriterionTypeDescription:
			criterion = &DescriptionCriterion{}
		default:
			return fmt.Errorf("scoring criterion %d: %w: %q", i, ErrUnknownCriterion, head.Type)
		}

		if err := json.Unmarshal(msg, criterion); err != nil {
			return fmt.Errorf("scoring criterion %d (%s): %w", i, head.Type, err)
		}
		out = append(out, criterion)
	}

	*sc = out
	return nil
}

// validate extends errs with every criterion's invalid fields.
func (sc ScoringCriteria) validate(errs *ValidationErrors, fieldPrefix string) {
	for i, c := range sc {
		if c == nil {
			continue
		}
		c.validate(errs, fmt.Sprintf("%s[%d]", fieldPrefix, i))
	}
}

// asFloat coerces an expression result into a float64.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// tokensEqual reports whether two token sequences are identical.
func tokensEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return len(a) > 0
}
