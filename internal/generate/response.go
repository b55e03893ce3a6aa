package generate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ppiankov/reqtrace/internal/llm"
	"github.com/ppiankov/reqtrace/internal/model"
)

// caseResponse is the lenient shape of one generated test case
type caseResponse struct {
	Kind           model.FlexString  `json:"kind"`
	Variant        model.FlexString  `json:"variant"`
	Title          model.FlexString  `json:"title"`
	Description    model.FlexString  `json:"description"`
	Preconditions  model.FlexStrings `json:"preconditions"`
	Steps          model.FlexStrings `json:"steps"`
	TestData       json.RawMessage   `json:"test_data"`
	ExpectedResult model.FlexString  `json:"expected_result"`
	Postconditions model.FlexStrings `json:"postconditions"`
	Priority       model.FlexString  `json:"priority"`
	Severity       model.FlexString  `json:"severity"`
	Type           model.FlexString  `json:"type"`
}

// kind reads the variant from "kind", then "variant", then "type", since
// models sometimes put it in the category field
func (c caseResponse) kind() (model.VariantKind, bool) {
	for _, v := range []model.FlexString{c.Kind, c.Variant, c.Type} {
		if k, ok := model.ParseVariantKind(string(v)); ok {
			return k, true
		}
	}
	return "", false
}

// valid reports whether the case has enough content to execute
func (c caseResponse) valid() bool {
	hasText := strings.TrimSpace(string(c.Title)) != "" || strings.TrimSpace(string(c.Description)) != ""
	return hasText && len(cleanList(c.Steps)) > 0 && strings.TrimSpace(string(c.ExpectedResult)) != ""
}

// testData decodes test_data into an object. A non-object value is kept
// under "value"; null or absent gives nil.
func (c caseResponse) testData() map[string]any {
	raw := bytes.TrimSpace(c.TestData)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return map[string]any{"value": v}
}

// parseCases accepts {"test_cases": [...]}, a bare array or a single case object
// acceptCases rejects responses holding no valid case of the requested kinds,
// so a retry with the same prompt reaches the model instead of the cache
func acceptCases(text string, kinds []model.VariantKind) error {
	cases, err := parseCases(text)
	if err != nil {
		return err
	}
	for _, c := range cases {
		kind, ok := c.kind()
		if ok && c.valid() && slices.Contains(kinds, kind) {
			return nil
		}
	}
	return fmt.Errorf("no valid test case for %s", joinKinds(kinds))
}

func parseCases(text string) ([]caseResponse, error) {
	raw, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	if raw[0] == '[' {
		var cases []caseResponse
		if err := json.Unmarshal(raw, &cases); err != nil {
			return nil, fmt.Errorf("decode test case array: %w", err)
		}
		return cases, nil
	}

	var wrapper struct {
		TestCases []caseResponse `json:"test_cases"`
		Cases     []caseResponse `json:"cases"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode test cases: %w", err)
	}
	switch {
	case len(wrapper.TestCases) > 0:
		return wrapper.TestCases, nil
	case len(wrapper.Cases) > 0:
		return wrapper.Cases, nil
	}

	var single caseResponse
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode test case: %w", err)
	}
	if _, ok := single.kind(); ok {
		return []caseResponse{single}, nil
	}
	return nil, errors.New("no test cases in response")
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
