// Package wpcli issues WP-CLI commands against a remote WordPress
// install over the ssh runner.
package wpcli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/sshexec"
)

// wpPath is the WordPress root on the managed hosts; every command runs
// from there.
const wpPath = "~/public"

const listFields = "ID,post_title,post_name,post_status,post_type,post_date,post_modified,post_excerpt,url"
const getFields = listFields + ",post_content"

type SEOPlugin string

const (
	PluginYoast    SEOPlugin = "yoast"
	PluginRankMath SEOPlugin = "rankmath"
	PluginNone     SEOPlugin = "none"
)

var YoastMetaKeys = []string{"_yoast_wpseo_title", "_yoast_wpseo_metadesc", "_yoast_wpseo_focuskw"}
var RankMathMetaKeys = []string{"rank_math_title", "rank_math_description", "rank_math_focus_keyword"}

// AllSEOMetaKeys is the union fetched when no recognized plugin is
// active.
var AllSEOMetaKeys = append(append([]string{}, YoastMetaKeys...), RankMathMetaKeys...)

// CLIError reports a failed WP-CLI invocation.
type CLIError struct {
	Operation string
	Result    sshexec.Result
}

func (e *CLIError) Error() string {
	stderr := e.Result.Stderr
	if len(stderr) > 200 {
		stderr = stderr[:200]
	}
	return fmt.Sprintf("wp-cli %s failed (exit %d): %s", e.Operation, e.Result.ExitCode, stderr)
}

type Client struct {
	runner sshexec.Runner
	conn   sshexec.ConnectionInfo
}

func NewClient(runner sshexec.Runner, conn sshexec.ConnectionInfo) *Client {
	if runner == nil {
		return nil
	}
	return &Client{runner: runner, conn: conn}
}

func wpCmd(cmd string) string {
	return "cd " + wpPath + " && " + cmd
}

func shellEscape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (c *Client) SiteURL(ctx context.Context) (string, error) {
	result := c.runner.Run(ctx, c.conn, wpCmd("wp option get siteurl"), sshexec.DefaultTimeout)
	if result.ExitCode != 0 {
		return "", &CLIError{Operation: "siteurl", Result: result}
	}
	return strings.TrimSpace(result.Stdout), nil
}

func (c *Client) SiteTitle(ctx context.Context) (string, error) {
	result := c.runner.Run(ctx, c.conn, wpCmd("wp option get blogname"), sshexec.DefaultTimeout)
	if result.ExitCode != 0 {
		return "", &CLIError{Operation: "blogname", Result: result}
	}
	return strings.TrimSpace(result.Stdout), nil
}

// PermalinkStructure is best-effort: an empty structure is valid.
func (c *Client) PermalinkStructure(ctx context.Context) (string, error) {
	result := c.runner.Run(ctx, c.conn, wpCmd("wp option get permalink_structure"), sshexec.DefaultTimeout)
	if result.ExitCode != 0 {
		return "", nil
	}
	return strings.TrimSpace(result.Stdout), nil
}

func (c *Client) ActiveTheme(ctx context.Context) (string, error) {
	result := c.runner.Run(ctx, c.conn, wpCmd("wp theme list --status=active --format=json"), sshexec.DefaultTimeout)
	if result.ExitCode != 0 {
		return "unknown", nil
	}
	var themes []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(result.Stdout), &themes); err != nil || len(themes) == 0 {
		return "unknown", nil
	}
	return themes[0].Name, nil
}

func (c *Client) ListPlugins(ctx context.Context) ([]domain.WPPlugin, error) {
	result := c.runner.Run(ctx, c.conn, wpCmd("wp plugin list --format=json"), sshexec.DefaultTimeout)
	if result.ExitCode != 0 {
		return []domain.WPPlugin{}, nil
	}
	var plugins []domain.WPPlugin
	if err := json.Unmarshal([]byte(result.Stdout), &plugins); err != nil {
		return []domain.WPPlugin{}, nil
	}
	return plugins, nil
}

// ListPosts lists published content of one type. Content bodies and
// meta are left empty; meta is filled in separately per item.
func (c *Client) ListPosts(ctx context.Context, postType string, limit int) ([]domain.WPPost, error) {
	if postType == "" {
		postType = "post"
	}
	if limit <= 0 {
		limit = 100
	}
	command := fmt.Sprintf(
		"wp post list --post_type=%s --post_status=publish --fields=%s --format=json --posts_per_page=%d",
		postType, listFields, limit,
	)
	result := c.runner.Run(ctx, c.conn, wpCmd(command), sshexec.LongTimeout)
	if result.ExitCode != 0 {
		return nil, &CLIError{Operation: "list " + postType + "s", Result: result}
	}
	var posts []domain.WPPost
	if err := json.Unmarshal([]byte(result.Stdout), &posts); err != nil {
		return nil, &CLIError{Operation: "parse " + postType + " list", Result: result}
	}
	for i := range posts {
		posts[i].Meta = map[string]string{}
		posts[i].Content = ""
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, postID int64) (*domain.WPPost, error) {
	command := fmt.Sprintf("wp post get %d --fields=%s --format=json", postID, getFields)
	result := c.runner.Run(ctx, c.conn, wpCmd(command), sshexec.DefaultTimeout)
	if result.ExitCode != 0 {
		return nil, nil
	}
	var post domain.WPPost
	if err := json.Unmarshal([]byte(result.Stdout), &post); err != nil {
		return nil, nil
	}
	post.Meta = map[string]string{}
	return &post, nil
}

// GetPostMeta reads the given meta keys one by one and returns only the
// keys that have a non-empty value.
func (c *Client) GetPostMeta(ctx context.Context, postID int64, metaKeys []string) (map[string]string, error) {
	meta := map[string]string{}
	for _, key := range metaKeys {
		command := fmt.Sprintf("wp post meta get %d %s", postID, shellEscape(key))
		result := c.runner.Run(ctx, c.conn, wpCmd(command), sshexec.DefaultTimeout)
		if result.ExitCode == 0 {
			if value := strings.TrimSpace(result.Stdout); value != "" {
				meta[key] = value
			}
		}
	}
	return meta, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.WPTerm, error) {
	return c.listTerms(ctx, "category")
}

func (c *Client) ListTags(ctx context.Context) ([]domain.WPTerm, error) {
	return c.listTerms(ctx, "post_tag")
}

func (c *Client) listTerms(ctx context.Context, taxonomy string) ([]domain.WPTerm, error) {
	command := fmt.Sprintf("wp term list %s --fields=term_id,name,slug,count,description --format=json", taxonomy)
	result := c.runner.Run(ctx, c.conn, wpCmd(command), sshexec.LongTimeout)
	if result.ExitCode != 0 {
		return []domain.WPTerm{}, nil
	}
	var terms []domain.WPTerm
	if err := json.Unmarshal([]byte(result.Stdout), &terms); err != nil {
		return []domain.WPTerm{}, nil
	}
	for i := range terms {
		terms[i].Taxonomy = taxonomy
	}
	return terms, nil
}

// DetectSEOPlugin picks the active SEO plugin, yoast first.
func (c *Client) DetectSEOPlugin(ctx context.Context) (SEOPlugin, error) {
	plugins, err := c.ListPlugins(ctx)
	if err != nil {
		return PluginNone, err
	}
	return DetectPlugin(plugins), nil
}

// DetectPlugin picks the active SEO plugin from an already-fetched
// plugin list, yoast first.
func DetectPlugin(plugins []domain.WPPlugin) SEOPlugin {
	for _, p := range plugins {
		if p.Status != "active" {
			continue
		}
		if strings.Contains(p.Name, "wordpress-seo") {
			return PluginYoast
		}
		if strings.Contains(p.Name, "seo-by-rank-math") {
			return PluginRankMath
		}
	}
	return PluginNone
}

// MetaKeysFor returns the meta keys worth fetching for the detected
// plugin.
func MetaKeysFor(plugin SEOPlugin) []string {
	switch plugin {
	case PluginYoast:
		return YoastMetaKeys
	case PluginRankMath:
		return RankMathMetaKeys
	}
	return AllSEOMetaKeys
}

// Writes return the raw command result so callers can log stdout,
// stderr and the exit code verbatim.

func (c *Client) UpdatePostTitle(ctx context.Context, postID int64, title string) sshexec.Result {
	command := fmt.Sprintf("wp post update %d --post_title=%s", postID, shellEscape(title))
	return c.runner.Run(ctx, c.conn, wpCmd(command), sshexec.DefaultTimeout)
}

func (c *Client) UpdatePostSlug(ctx context.Context, postID int64, slug string) sshexec.Result {
	command := fmt.Sprintf("wp post update %d --post_name=%s", postID, shellEscape(slug))
	return c.runner.Run(ctx, c.conn, wpCmd(command), sshexec.DefaultTimeout)
}

func (c *Client) UpdatePostExcerpt(ctx context.Context, postID int64, excerpt string) sshexec.Result {
	command := fmt.Sprintf("wp post update %d --post_excerpt=%s", postID, shellEscape(excerpt))
	return c.runner.Run(ctx, c.conn, wpCmd(command), sshexec.DefaultTimeout)
}

func (c *Client) UpdatePostMeta(ctx context.Context, postID int64, metaKey, metaValue string) sshexec.Result {
	command := fmt.Sprintf("wp post meta update %d %s %s", postID, shellEscape(metaKey), shellEscape(metaValue))
	return c.runner.Run(ctx, c.conn, wpCmd(command), sshexec.DefaultTimeout)
}

// UpdatePostContent pipes the body through stdin so large content does
// not blow the argv limit.
func (c *Client) UpdatePostContent(ctx context.Context, postID int64, content string) sshexec.Result {
	escaped := strings.ReplaceAll(content, "'", `'\''`)
	command := fmt.Sprintf("echo '%s' | wp post update %d --post_content=-", escaped, postID)
	return c.runner.Run(ctx, c.conn, wpCmd(command), sshexec.LongTimeout)
}
