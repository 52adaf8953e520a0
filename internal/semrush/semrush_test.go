package semrush

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleReport = `Keyword;Position;Search Volume;CPC;Url;Traffic (%)
family dentist payson;3;880;4.25;https://example.com/;12.5
dentist near me;11;12100;6.80;https://example.com/services/;7.25
teeth whitening utah;24;590;3.10;https://example.com/whitening/;1.0`

func TestParseReport(t *testing.T) {
	keywords, traffic, err := parseReport(sampleReport)
	if err != nil {
		t.Fatalf("parseReport: %v", err)
	}
	if len(keywords) != 3 {
		t.Fatalf("expected 3 keywords, got %d", len(keywords))
	}
	first := keywords[0]
	if first.Keyword != "family dentist payson" || first.Position != 3 || first.SearchVolume != 880 {
		t.Fatalf("unexpected keyword: %+v", first)
	}
	if first.CPC != 4.25 || first.URL != "https://example.com/" || first.TrafficPercent != 12.5 {
		t.Fatalf("unexpected keyword: %+v", first)
	}
	if traffic == nil || *traffic != 21 {
		t.Fatalf("organic traffic should round the percent sum, got %v", traffic)
	}
}

func TestParseReportErrorBody(t *testing.T) {
	if _, _, err := parseReport("ERROR 50 :: NOTHING FOUND"); err == nil {
		t.Fatal("expected ERROR body to fail")
	}
}

func TestParseReportHeaderOnly(t *testing.T) {
	keywords, traffic, err := parseReport("Keyword;Position;Search Volume;CPC;Url;Traffic (%)")
	if err != nil {
		t.Fatalf("parseReport: %v", err)
	}
	if len(keywords) != 0 || traffic != nil {
		t.Fatalf("header-only report should be empty, got %v, %v", keywords, traffic)
	}
}

func TestParseReportSkipsShortLines(t *testing.T) {
	report := sampleReport + "\nbroken;line"
	keywords, _, err := parseReport(report)
	if err != nil {
		t.Fatalf("parseReport: %v", err)
	}
	if len(keywords) != 3 {
		t.Fatalf("short lines should be skipped, got %d keywords", len(keywords))
	}
}

func TestFetchKeywordsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(sampleReport))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/", Database: "us"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	keywords, _, err := client.FetchKeywords(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("FetchKeywords: %v", err)
	}
	if len(keywords) != 3 {
		t.Fatalf("expected 3 keywords, got %d", len(keywords))
	}
	for _, fragment := range []string{
		"type=domain_organic",
		"domain=example.com",
		"database=us",
		"display_limit=100",
	} {
		if !strings.Contains(gotQuery, fragment) {
			t.Fatalf("query missing %q: %s", fragment, gotQuery)
		}
	}
	if !strings.Contains(gotQuery, "export_columns=Ph%2CPo%2CNq%2CCp%2CUr%2CTr") {
		t.Fatalf("query missing export columns: %s", gotQuery)
	}
}

func TestFetchKeywordsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/", Database: "us"})
	if _, _, err := client.FetchKeywords(context.Background(), "example.com"); err == nil {
		t.Fatal("expected non-200 to fail")
	}
}
