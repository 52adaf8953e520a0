package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

type parsedPlan struct {
	StrategySummary string                  `json:"strategy_summary"`
	KeywordClusters []domain.KeywordCluster `json:"keyword_clusters"`
	Changes         []parsedChange          `json:"changes"`
}

type parsedChange struct {
	PostID     optionalID `json:"post_id"`
	ChangeType string     `json:"change_type"`
	FieldName  string     `json:"field_name"`
	OldValue   string     `json:"old_value"`
	NewValue   string     `json:"new_value"`
	Reasoning  string     `json:"reasoning"`
	Priority   string     `json:"priority"`
}

// optionalID treats anything that is not a JSON number as absent, so a
// null or malformed post_id yields a site-wide change rather than a
// parse failure.
type optionalID struct {
	value *int64
}

func (o *optionalID) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		o.value = &n
	}
	return nil
}

// parseResponse decodes a reasoning response into a plan. Markdown code
// fences around the JSON are tolerated. Out-of-enum change types and
// priorities are coerced to title_rewrite and medium by default; in
// strict mode they reject the response instead.
func parseResponse(text string, strict bool) (parsedPlan, error) {
	raw := stripFences(text)

	var parsed parsedPlan
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		preview := raw
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return parsedPlan{}, fmt.Errorf("response is not valid JSON: %s", preview)
	}

	if parsed.KeywordClusters == nil {
		parsed.KeywordClusters = []domain.KeywordCluster{}
	}
	for i := range parsed.Changes {
		c := &parsed.Changes[i]
		if !domain.ValidChangeType(c.ChangeType) {
			if strict {
				return parsedPlan{}, fmt.Errorf("change %d: unknown change_type %q", i, c.ChangeType)
			}
			c.ChangeType = string(domain.ChangeTitleRewrite)
		}
		if !domain.ValidChangePriority(c.Priority) {
			if strict {
				return parsedPlan{}, fmt.Errorf("change %d: unknown priority %q", i, c.Priority)
			}
			c.Priority = string(domain.PriorityMedium)
		}
	}
	return parsed, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
