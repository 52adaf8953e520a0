package planner

import (
	"strings"
	"testing"
)

const sampleResponse = `{
  "strategy_summary": "Target local dental keywords.",
  "keyword_clusters": [
    {"name": "Dentistry", "primary_keyword": "family dentist", "related_keywords": ["dentist near me"], "search_volume": 900, "difficulty": "medium", "target_posts": [42]}
  ],
  "changes": [
    {"post_id": 42, "change_type": "title_rewrite", "field_name": "post_title", "old_value": "Home", "new_value": "Best Family Dentist in Payson, UT | Gunnerson Dental", "reasoning": "Adds location and service keywords", "priority": "high"}
  ]
}`

func TestParseResponsePlain(t *testing.T) {
	plan, err := parseResponse(sampleResponse, false)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if plan.StrategySummary != "Target local dental keywords." {
		t.Fatalf("unexpected summary: %q", plan.StrategySummary)
	}
	if len(plan.KeywordClusters) != 1 || plan.KeywordClusters[0].PrimaryKeyword != "family dentist" {
		t.Fatalf("unexpected clusters: %+v", plan.KeywordClusters)
	}
	if len(plan.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(plan.Changes))
	}
	change := plan.Changes[0]
	if change.PostID.value == nil || *change.PostID.value != 42 {
		t.Fatalf("unexpected post id: %+v", change.PostID)
	}
	if change.NewValue != "Best Family Dentist in Payson, UT | Gunnerson Dental" {
		t.Fatalf("unexpected new value: %q", change.NewValue)
	}
}

func TestParseResponseStripsFences(t *testing.T) {
	fenced := "```json\n" + sampleResponse + "\n```"
	plan, err := parseResponse(fenced, false)
	if err != nil {
		t.Fatalf("fenced response rejected: %v", err)
	}
	if len(plan.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(plan.Changes))
	}

	bare := "```\n" + sampleResponse + "\n```"
	if _, err := parseResponse(bare, false); err != nil {
		t.Fatalf("bare fenced response rejected: %v", err)
	}
}

func TestParseResponseCoercesUnknownEnums(t *testing.T) {
	raw := `{"strategy_summary": "s", "changes": [
	  {"post_id": 1, "change_type": "mystery_type", "field_name": "f", "new_value": "v", "priority": "urgent"}
	]}`
	plan, err := parseResponse(raw, false)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if got := plan.Changes[0].ChangeType; got != "title_rewrite" {
		t.Fatalf("change type not coerced, got %q", got)
	}
	if got := plan.Changes[0].Priority; got != "medium" {
		t.Fatalf("priority not coerced, got %q", got)
	}
}

func TestParseResponseStrictRejectsUnknownEnums(t *testing.T) {
	raw := `{"strategy_summary": "s", "changes": [
	  {"post_id": 1, "change_type": "mystery_type", "field_name": "f", "new_value": "v", "priority": "high"}
	]}`
	if _, err := parseResponse(raw, true); err == nil {
		t.Fatal("expected strict parse to reject unknown change_type")
	}

	raw = `{"strategy_summary": "s", "changes": [
	  {"post_id": 1, "change_type": "title_rewrite", "field_name": "f", "new_value": "v", "priority": "urgent"}
	]}`
	if _, err := parseResponse(raw, true); err == nil {
		t.Fatal("expected strict parse to reject unknown priority")
	}
}

func TestParseResponseMalformed(t *testing.T) {
	_, err := parseResponse("the model replied in prose instead of JSON", false)
	if err == nil {
		t.Fatal("expected malformed response to be rejected")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseResponseNullPostID(t *testing.T) {
	raw := `{"strategy_summary": "s", "changes": [
	  {"post_id": null, "change_type": "redirect", "field_name": "redirect_rule", "new_value": "/a -> /b", "priority": "low"}
	]}`
	plan, err := parseResponse(raw, false)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if plan.Changes[0].PostID.value != nil {
		t.Fatalf("expected nil post id, got %v", *plan.Changes[0].PostID.value)
	}
}
