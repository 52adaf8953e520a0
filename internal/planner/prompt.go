package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

const (
	promptPostCap    = 50
	promptPageCap    = 30
	promptTagCap     = 30
	promptKeywordCap = 50
)

const systemPrompt = `You are an expert SEO strategist analyzing WordPress site data. Your job is to produce actionable SEO recommendations.

You MUST respond with valid JSON in exactly this format:
{
  "strategy_summary": "A 2-3 paragraph summary of the overall SEO strategy",
  "keyword_clusters": [
    {
      "name": "Cluster Name",
      "primary_keyword": "main keyword",
      "related_keywords": ["kw1", "kw2"],
      "search_volume": 1000,
      "difficulty": "medium",
      "target_posts": [123, 456]
    }
  ],
  "changes": [
    {
      "post_id": 123,
      "change_type": "title_rewrite",
      "field_name": "post_title",
      "old_value": "Current Title",
      "new_value": "Optimized Title | Brand",
      "reasoning": "Why this change improves SEO",
      "priority": "high"
    }
  ]
}

Valid change_type values: title_rewrite, meta_description, slug_change, content_addition, internal_link, schema_markup, redirect, category_change, tag_change, excerpt_rewrite

Priority values: high, medium, low

Guidelines:
- Focus on the highest-impact changes first
- Title rewrites should include target keywords naturally
- Meta descriptions should be 150-160 characters
- Suggest internal linking opportunities between related content
- Consider existing SEO plugin meta (Yoast/RankMath) when present
- Be specific with recommendations - include exact new values
- Return ONLY the JSON, no markdown formatting or code fences`

// buildPrompt renders the crawl (and optional keyword rankings) into
// the full reasoning prompt. Posts, pages, tags, and keywords are
// capped so a large site cannot blow the context; categories always go
// in whole.
func buildPrompt(data domain.CrawlData, keywords []domain.RankedKeyword) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Site: %s (%s)", data.SiteTitle, data.SiteURL))
	parts = append(parts, fmt.Sprintf("Theme: %s", data.Theme))
	parts = append(parts, fmt.Sprintf("Permalinks: %s", data.PermalinkStructure))
	parts = append(parts, fmt.Sprintf("Posts: %d, Pages: %d", len(data.Posts), len(data.Pages)))
	parts = append(parts, fmt.Sprintf("Categories: %d, Tags: %d", len(data.Categories), len(data.Tags)))

	var seoPlugins []string
	for _, p := range data.Plugins {
		if p.Status == "active" && (strings.Contains(p.Name, "seo") || strings.Contains(p.Name, "rankmath")) {
			seoPlugins = append(seoPlugins, p.Name)
		}
	}
	if len(seoPlugins) > 0 {
		parts = append(parts, "SEO Plugins: "+strings.Join(seoPlugins, ", "))
	}

	parts = append(parts, "\n--- POSTS ---")
	parts = append(parts, postLines(data.Posts, promptPostCap)...)

	parts = append(parts, "\n--- PAGES ---")
	parts = append(parts, postLines(data.Pages, promptPageCap)...)

	if len(data.Categories) > 0 {
		parts = append(parts, "\n--- CATEGORIES ---")
		for _, cat := range data.Categories {
			parts = append(parts, fmt.Sprintf("%s (%d posts)", cat.Name, cat.Count))
		}
	}

	if len(data.Tags) > 0 {
		parts = append(parts, "\n--- TAGS ---")
		for i, tag := range data.Tags {
			if i >= promptTagCap {
				break
			}
			parts = append(parts, fmt.Sprintf("%s (%d posts)", tag.Name, tag.Count))
		}
	}

	if len(keywords) > 0 {
		parts = append(parts, "\n--- SEMRUSH KEYWORD DATA ---")
		for i, kw := range keywords {
			if i >= promptKeywordCap {
				break
			}
			parts = append(parts, fmt.Sprintf("%q pos:%d vol:%d cpc:%.2f url:%s",
				kw.Keyword, kw.Position, kw.SearchVolume, kw.CPC, kw.URL))
		}
	}

	parts = append(parts, "\nAnalyze this site data and generate a comprehensive SEO optimization plan.")

	return systemPrompt + "\n\n" + strings.Join(parts, "\n")
}

func postLines(posts []domain.WPPost, limit int) []string {
	var lines []string
	for i, post := range posts {
		if i >= limit {
			break
		}
		var pairs []string
		for _, key := range sortedKeys(post.Meta) {
			if value := post.Meta[key]; value != "" {
				pairs = append(pairs, key+"="+value)
			}
		}
		line := fmt.Sprintf("[ID:%d] %q /%s/", post.ID, post.Title, post.Name)
		if len(pairs) > 0 {
			line += " (" + strings.Join(pairs, " | ") + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
