package application

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

const (
	messageTitle   = "🔍 Stale Merge Requests Review"
	maxTitleRunes  = 55
	unknownDisplay = "priority unknown"
)

// projectEmojis is matched in order against the lower-cased project name;
// the first keyword contained in the name wins.
var projectEmojis = []struct {
	keyword string
	emoji   string
}{
	{"rohan", "🏰"},
	{"edoras", "🏛️"},
	{"athena", "🦉"},
	{"backend", "⚙️"},
	{"frontend", "🎨"},
	{"api", "🔌"},
	{"web", "🌐"},
	{"mobile", "📱"},
	{"admin", "👑"},
	{"core", "💎"},
}

const defaultProjectEmoji = "📁"

var tierEmoji = map[model.UrgencyTier]string{
	model.TierCritical: "🚨",
	model.TierWarning:  "🟠",
	model.TierNotice:   "🟡",
}

var priorityEmoji = map[model.Priority]string{
	model.PriorityHighest: "🔥",
	model.PriorityHigh:    "⚡",
	model.PriorityMedium:  "📋",
	model.PriorityLow:     "📝",
	model.PriorityLowest:  "💤",
}

// ProjectEmoji returns the emoji shown in front of a project header.
func ProjectEmoji(name string) string {
	lower := strings.ToLower(name)
	for _, e := range projectEmojis {
		if strings.Contains(lower, e.keyword) {
			return e.emoji
		}
	}
	return defaultProjectEmoji
}

// FormatReport renders a team report as a chat message. It returns false when
// the report has no stale requests, in which case nothing should be sent.
func FormatReport(report model.TeamReport, identities map[string]string) (model.RenderedMessage, bool) {
	if report.Empty() {
		return model.RenderedMessage{}, false
	}

	total := report.Summary.Total
	projects := len(report.Projects)
	headline := fmt.Sprintf("🔔 *Daily Review Reminder* - %s need attention across %s",
		plural(total, "merge request"), plural(projects, "project"))

	blocks := []model.Block{
		{Type: model.BlockHeader, Text: &model.TextObject{Type: model.TextPlain, Text: messageTitle}},
		markdownSection(headline),
		{Type: model.BlockDivider},
	}

	for _, p := range report.Projects {
		blocks = append(blocks, markdownSection(fmt.Sprintf("%s *%s* - %s",
			ProjectEmoji(p.Name), p.Name, plural(len(p.Requests), "MR"))))
		for _, c := range SortForDisplay(p.Requests) {
			blocks = append(blocks, markdownSection(formatRequest(c, identities)))
		}
		blocks = append(blocks, model.Block{Type: model.BlockDivider})
	}

	footer := fmt.Sprintf("📊 *Summary:* %s across %s • Oldest: %s (%s) • Average age: %s",
		plural(total, "MR"), plural(projects, "project"),
		plural(report.Summary.OldestAge, "day"), report.Summary.OldestProject,
		plural(report.Summary.MeanAge, "day"))
	blocks = append(blocks, model.Block{
		Type:     model.BlockContext,
		Elements: []model.TextObject{{Type: model.TextMarkdown, Text: footer}},
	})

	return model.RenderedMessage{Text: headline, Blocks: blocks}, true
}

// SortForDisplay returns a copy of requests ordered by tier (most urgent
// first), then age (oldest first), then ascending request ID.
func SortForDisplay(requests []model.ClassifiedRequest) []model.ClassifiedRequest {
	sorted := append([]model.ClassifiedRequest(nil), requests...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Tier != b.Tier {
			return a.Tier > b.Tier
		}
		if a.AgeDays != b.AgeDays {
			return a.AgeDays > b.AgeDays
		}
		return a.Request.ID < b.Request.ID
	})
	return sorted
}

func formatRequest(c model.ClassifiedRequest, identities map[string]string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s *<%s|%s>*\n", tierEmoji[c.Tier], c.Request.URL, truncateTitle(c.Request.Title))
	fmt.Fprintf(&b, "⏰ *Age:* %s old (threshold: %s)\n", plural(c.AgeDays, "day"), plural(c.Threshold, "day"))

	if line := ticketLine(c); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(c.Request.Reviewers) > 0 {
		fmt.Fprintf(&b, "👀 *Reviewers:* %s\n", strings.Join(ResolveMentions(c.Request.Reviewers, identities), ", "))
	}
	if len(c.Request.Assignees) > 0 {
		fmt.Fprintf(&b, "👤 *Assignees:* %s\n", strings.Join(ResolveMentions(c.Request.Assignees, identities), ", "))
	}
	fmt.Fprintf(&b, "✍️ *Author:* %s", ResolveMention(c.Request.Author, identities))

	return b.String()
}

func ticketLine(c model.ClassifiedRequest) string {
	key := c.Request.TicketKey
	if key == "" {
		return ""
	}
	if c.Ticket == nil {
		return fmt.Sprintf("🎫 *JIRA:* %s · %s", key, unknownDisplay)
	}

	line := "🎫 *JIRA:* " + key
	if c.Ticket.Status != "" {
		line += " (" + c.Ticket.Status + ")"
	}
	if p := c.Priority(); p != model.PriorityUnknown {
		line += " " + priorityEmoji[p] + " " + p.Title()
	} else {
		line += " · " + unknownDisplay
	}
	return line
}

// ResolveMention maps a provider handle to a chat mention. Exact matches win,
// then case-insensitive ones; unmapped handles are returned unchanged.
func ResolveMention(handle string, identities map[string]string) string {
	if mention, ok := identities[handle]; ok && mention != "" {
		return mention
	}
	// Lowest matching key wins so the result does not depend on map order.
	var best string
	resolved, found := handle, false
	for k, mention := range identities {
		if mention == "" || !strings.EqualFold(k, handle) {
			continue
		}
		if !found || k < best {
			best, resolved, found = k, mention, true
		}
	}
	return resolved
}

// ResolveMentions resolves every handle, keeping order and length.
func ResolveMentions(handles []string, identities map[string]string) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = ResolveMention(h, identities)
	}
	return out
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleRunes {
		return title
	}
	return string(runes[:maxTitleRunes]) + "..."
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func markdownSection(text string) model.Block {
	return model.Block{Type: model.BlockSection, Text: &model.TextObject{Type: model.TextMarkdown, Text: text}}
}
