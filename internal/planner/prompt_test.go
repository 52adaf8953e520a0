package planner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

func TestBuildPromptCapsSections(t *testing.T) {
	data := domain.CrawlData{
		SiteURL:            "https://example.com",
		SiteTitle:          "Example",
		Theme:              "astra",
		PermalinkStructure: "/%postname%/",
	}
	for i := 0; i < 80; i++ {
		data.Posts = append(data.Posts, domain.WPPost{ID: int64(i + 1), Title: fmt.Sprintf("Post %d", i+1), Name: fmt.Sprintf("post-%d", i+1)})
	}
	for i := 0; i < 40; i++ {
		data.Pages = append(data.Pages, domain.WPPost{ID: int64(1000 + i), Title: fmt.Sprintf("Page %d", i+1), Name: fmt.Sprintf("page-%d", i+1)})
	}
	for i := 0; i < 10; i++ {
		data.Categories = append(data.Categories, domain.WPTerm{Name: fmt.Sprintf("Cat %d", i+1), Count: i})
	}
	for i := 0; i < 45; i++ {
		data.Tags = append(data.Tags, domain.WPTerm{Name: fmt.Sprintf("Tag %d", i+1), Count: i})
	}
	var keywords []domain.RankedKeyword
	for i := 0; i < 70; i++ {
		keywords = append(keywords, domain.RankedKeyword{Keyword: fmt.Sprintf("kw %d", i+1), Position: i + 1})
	}

	prompt := buildPrompt(data, keywords)

	if got := strings.Count(prompt, "[ID:"); got != promptPostCap+promptPageCap {
		t.Fatalf("expected %d content lines, got %d", promptPostCap+promptPageCap, got)
	}
	if strings.Contains(prompt, "Post 51") {
		t.Fatal("posts past the cap leaked into the prompt")
	}
	if !strings.Contains(prompt, "Cat 10") {
		t.Fatal("all categories should be included")
	}
	if strings.Contains(prompt, "Tag 31 ") {
		t.Fatal("tags past the cap leaked into the prompt")
	}
	if strings.Contains(prompt, `"kw 51"`) {
		t.Fatal("keywords past the cap leaked into the prompt")
	}
	if !strings.Contains(prompt, "Posts: 80, Pages: 40") {
		t.Fatal("header counts should reflect the full crawl")
	}
}

func TestBuildPromptIncludesMetaAndPlugins(t *testing.T) {
	data := domain.CrawlData{
		SiteURL:   "https://example.com",
		SiteTitle: "Example",
		Posts: []domain.WPPost{
			{
				ID:    42,
				Title: "Home",
				Name:  "home",
				Meta: map[string]string{
					"_yoast_wpseo_title":    "Home | Example",
					"_yoast_wpseo_metadesc": "",
				},
			},
		},
		Plugins: []domain.WPPlugin{
			{Name: "wordpress-seo", Status: "active"},
			{Name: "akismet", Status: "active"},
			{Name: "seo-by-rank-math", Status: "inactive"},
		},
	}

	prompt := buildPrompt(data, nil)

	if !strings.Contains(prompt, `[ID:42] "Home" /home/ (_yoast_wpseo_title=Home | Example)`) {
		t.Fatalf("post line missing or malformed:\n%s", prompt)
	}
	if !strings.Contains(prompt, "SEO Plugins: wordpress-seo") {
		t.Fatal("active SEO plugin not listed")
	}
	if strings.Contains(prompt, "seo-by-rank-math") {
		t.Fatal("inactive plugin should not be listed")
	}
	if !strings.HasPrefix(prompt, "You are an expert SEO strategist") {
		t.Fatal("system instructions should lead the prompt")
	}
}
