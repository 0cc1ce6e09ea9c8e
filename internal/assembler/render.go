package assembler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rcliao/story-continuity/internal/digest"
)

// minExcerpt is the smallest remaining budget worth filling with a partial
// section.
const minExcerpt = 100

// Render formats ctx as markdown sections in priority order: previous
// chapter, open threads, characters, world, recent events, earlier
// chapters. Sections are packed greedily into budget bytes; the first
// section that does not fit is excerpted when at least minExcerpt bytes
// remain and rendering stops there. A budget <= 0 renders everything.
func Render(ctx *Context, budget int) string {
	if ctx == nil {
		return ""
	}
	sections := []string{
		previousSection(ctx),
		threadSection(ctx),
		characterSection(ctx),
		worldSection(ctx),
		eventSection(ctx),
		earlierSection(ctx),
	}
	// The previous chapter summary is prose; the rest are item lists.
	excerpts := []func(string, int) string{digest.Excerpt}

	var sb strings.Builder
	used := 0
	for i, s := range sections {
		if s == "" {
			continue
		}
		sep := 0
		if used > 0 {
			sep = 2
		}
		if budget <= 0 || used+sep+len(s) <= budget {
			if sep > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(s)
			used += sep + len(s)
			continue
		}
		if remaining := budget - used - sep; remaining >= minExcerpt {
			excerpt := packLines
			if i < len(excerpts) {
				excerpt = excerpts[i]
			}
			if ex := excerpt(s, remaining); ex != "" {
				if sep > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(ex)
			}
		}
		break
	}
	return sb.String()
}

// packLines keeps the heading and as many whole item lines of a list
// section as fit in max bytes, marking the cut with a trailing "...".
func packLines(section string, max int) string {
	const more = "\n..."
	lines := strings.Split(section, "\n")
	used := len(lines[0])
	n := 1
	for _, l := range lines[1:] {
		if used+1+len(l)+len(more) > max {
			break
		}
		used += 1 + len(l)
		n++
	}
	if n == 1 {
		return ""
	}
	return strings.Join(lines[:n], "\n") + more
}

func previousSection(ctx *Context) string {
	if ctx.PreviousSummary == nil {
		return ""
	}
	return fmt.Sprintf("## Previously (chapter %d)\n%s", ctx.PreviousSummary.Chapter, ctx.PreviousSummary.Summary)
}

func threadSection(ctx *Context) string {
	if len(ctx.OpenThreads) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Open plot threads")
	for _, th := range ctx.OpenThreads {
		fmt.Fprintf(&sb, "\n- [%s] %s (%s since chapter %d)", th.ID, th.Description, th.Status, th.ChapterIntroduced)
	}
	return sb.String()
}

func characterSection(ctx *Context) string {
	if len(ctx.Characters) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Characters")
	for _, c := range ctx.Characters {
		sb.WriteString("\n- " + c.Name)
		if c.Role != "" {
			sb.WriteString(" (" + c.Role + ")")
		}
		if c.Description != "" {
			sb.WriteString(": " + c.Description)
		}
		if len(c.Relationships) > 0 {
			keys := slices.Sorted(maps.Keys(c.Relationships))
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, k+": "+c.Relationships[k])
			}
			sb.WriteString("\n  relationships: " + strings.Join(parts, "; "))
		}
		if len(c.Abilities) > 0 {
			sb.WriteString("\n  abilities: " + strings.Join(c.Abilities, ", "))
		}
		if c.State != nil {
			if c.State.Emotional != "" {
				fmt.Fprintf(&sb, "\n  feeling (ch %d): %s", c.StateChapter, c.State.Emotional)
			}
			if c.State.Knowledge != "" {
				fmt.Fprintf(&sb, "\n  knows (ch %d): %s", c.StateChapter, c.State.Knowledge)
			}
		}
	}
	return sb.String()
}

func worldSection(ctx *Context) string {
	if len(ctx.WorldElements) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## World")
	for _, el := range ctx.WorldElements {
		sb.WriteString("\n- " + el.ID)
		if el.Category != "" {
			sb.WriteString(" [" + el.Category + "]")
		}
		if el.Description != "" {
			sb.WriteString(": " + el.Description)
		}
	}
	return sb.String()
}

func eventSection(ctx *Context) string {
	if len(ctx.RecentEvents) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Recent events")
	for _, ev := range ctx.RecentEvents {
		fmt.Fprintf(&sb, "\n- ch %d", ev.Chapter)
		if ev.StoryTime != "" {
			sb.WriteString(", " + ev.StoryTime)
		}
		sb.WriteString(": " + ev.Description)
	}
	return sb.String()
}

func earlierSection(ctx *Context) string {
	if len(ctx.EarlierSummaries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Earlier chapters")
	for _, d := range ctx.EarlierSummaries {
		fmt.Fprintf(&sb, "\n- ch %d: %s", d.Chapter, d.Digest)
	}
	return sb.String()
}
