package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"notesbot/internal/model"
)

const (
	statusActive = "active"
	statusPaused = "paused"
)

func platformIcon(p model.Platform) string {
	switch p {
	case model.PlatformTelegram:
		return "✈️"
	case model.PlatformTwitter:
		return "🐦"
	case model.PlatformReddit:
		return "🤖"
	case model.PlatformYouTube:
		return "📺"
	case model.PlatformVK:
		return "🔵"
	case model.PlatformWeb:
		return "🌐"
	case model.PlatformRSS:
		return "📡"
	}
	return "📄"
}

func platformLabel(p model.Platform) string {
	switch p {
	case model.PlatformYouTube:
		return "YouTube"
	case model.PlatformVK:
		return "VK"
	case model.PlatformRSS:
		return "RSS"
	}
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatNotesPage formats one page of notes, newest first.
func FormatNotesPage(notes []model.Note, page, total, perPage int) string {
	var b strings.Builder
	first := (page-1)*perPage + 1
	last := first + len(notes) - 1
	fmt.Fprintf(&b, "Your notes (%d-%d of %d):\n", first, last, total)

	for _, n := range notes {
		fmt.Fprintf(&b, "\n%s %s\n", platformIcon(n.Platform), n.Title)
		if n.Author != "" {
			fmt.Fprintf(&b, "   by %s", n.Author)
			if n.PublishedAt != nil {
				fmt.Fprintf(&b, " on %s", n.PublishedAt.Format("2006-01-02"))
			}
			b.WriteString("\n")
		} else if n.PublishedAt != nil {
			fmt.Fprintf(&b, "   %s\n", n.PublishedAt.Format("2006-01-02"))
		}
		if preview := previewText(n.Content, 100); preview != "" && preview != n.Title {
			fmt.Fprintf(&b, "   %s\n", preview)
		}
		if n.Category != "" && n.Category != "uncategorized" {
			fmt.Fprintf(&b, "   #%s\n", n.Category)
		}
		if n.URL != "" {
			fmt.Fprintf(&b, "   %s\n", n.URL)
		}
	}
	return b.String()
}

// FormatSources formats the user's subscriptions for display.
func FormatSources(subs []model.Subscription) string {
	if len(subs) == 0 {
		return "You have no subscriptions yet. Use /add to follow a source."
	}
	var b strings.Builder
	b.WriteString("Your sources:\n")
	for _, s := range subs {
		status := statusActive
		if !s.IsActive {
			status = statusPaused
		}
		fmt.Fprintf(&b, "\n#%d %s %s  (every %d min) [%s]\n",
			s.ID, platformIcon(s.Platform), s.DisplayName, s.FetchIntervalMinutes, status)
		if s.LastFetchedAt != nil {
			fmt.Fprintf(&b, "   last check: %s\n", s.LastFetchedAt.Format("2006-01-02 15:04 UTC"))
		} else {
			b.WriteString("   not checked yet\n")
		}
	}
	return b.String()
}

// FormatStats formats aggregate note counts.
func FormatStats(stats *model.NoteStats) string {
	if stats.Total == 0 {
		return "No notes collected yet. Use /add to follow a source."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d note(s).\n", stats.Total)

	b.WriteString("\nBy platform:\n")
	for _, p := range model.AllPlatforms() {
		if n := stats.ByPlatform[p]; n > 0 {
			fmt.Fprintf(&b, "  %s %s: %d\n", platformIcon(p), platformLabel(p), n)
		}
	}

	b.WriteString("\nBy status:\n")
	for _, s := range []model.NoteStatus{model.StatusNew, model.StatusProcessed, model.StatusArchived, model.StatusDeleted} {
		if n := stats.ByStatus[s]; n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", s, n)
		}
	}
	return b.String()
}

// FormatSettings formats the user's preferences.
func FormatSettings(s *model.UserSettings) string {
	var b strings.Builder
	b.WriteString("Your settings:\n\n")
	fmt.Fprintf(&b, "Notifications: %s\n", onOff(s.Notifications))
	fmt.Fprintf(&b, "Auto-categorize: %s\n", onOff(s.AutoCategorize))
	fmt.Fprintf(&b, "Notes per page: %d\n", s.ItemsPerPage)
	fmt.Fprintf(&b, "Time zone: %s\n", s.TimeZone)
	if len(s.BlockedSources) > 0 {
		fmt.Fprintf(&b, "Blocked authors: %s\n", strings.Join(s.BlockedSources, ", "))
	}
	return b.String()
}

// FormatSearchResults formats the outcome of a keyword search.
func FormatSearchResults(keyword string, notes []model.Note) string {
	if len(notes) == 0 {
		return fmt.Sprintf("No notes match %q.", keyword)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Notes matching %q:\n", keyword)
	for _, n := range notes {
		fmt.Fprintf(&b, "\n%s %s\n", platformIcon(n.Platform), n.Title)
		if preview := previewText(n.Content, 100); preview != "" && preview != n.Title {
			fmt.Fprintf(&b, "   %s\n", preview)
		}
		if n.URL != "" {
			fmt.Fprintf(&b, "   %s\n", n.URL)
		}
	}
	return b.String()
}

// FormatFilterList formats the filter rules of a subscription grouped by kind.
func FormatFilterList(sub *model.Subscription, filters []model.Filter) string {
	if len(filters) == 0 {
		return fmt.Sprintf("No filters for #%d \"%s\".\nUse /include, /exclude, /include_re, /exclude_re to add filters.",
			sub.ID, sub.DisplayName)
	}

	groups := map[string][]model.Filter{}
	for _, f := range filters {
		var name string
		switch f.Kind {
		case model.FilterInclude:
			name = "Include (word)"
		case model.FilterIncludeRe:
			name = "Include (regex)"
		case model.FilterExclude:
			name = "Exclude (word)"
		case model.FilterExcludeRe:
			name = "Exclude (regex)"
		default:
			continue
		}
		groups[name] = append(groups[name], f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Filters for #%d \"%s\":\n", sub.ID, sub.DisplayName)

	order := []string{"Include (word)", "Include (regex)", "Exclude (word)", "Exclude (regex)"}
	for _, groupName := range order {
		fs := groups[groupName]
		if len(fs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", groupName)
		for _, f := range fs {
			fmt.Fprintf(&b, "  F%d: %s (%s)\n", f.ID, f.Value, scopeLabel(f.Scope))
		}
	}
	return b.String()
}

func scopeLabel(s model.FilterScope) string {
	switch s {
	case model.ScopeTitle:
		return "title only"
	case model.ScopeContent:
		return "content only"
	default:
		return "title+content"
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func previewText(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max-3]) + "..."
	}
	return s
}

// platformKeyboard builds the platform picker shown by /add.
func platformKeyboard() tgbotapi.InlineKeyboardMarkup {
	platforms := model.AllPlatforms()
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(platforms); i += 2 {
		var row []tgbotapi.InlineKeyboardButton
		for _, p := range platforms[i:min(i+2, len(platforms))] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				platformIcon(p)+" "+platformLabel(p), "add:"+string(p)))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// listKeyboard builds prev/next pagination for /list. Returns false when
// everything fits on one page.
func listKeyboard(page, lastPage int) (tgbotapi.InlineKeyboardMarkup, bool) {
	if lastPage <= 1 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	var row []tgbotapi.InlineKeyboardButton
	if page > 1 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("« Prev", fmt.Sprintf("list:%d", page-1)))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData(
		fmt.Sprintf("%d/%d", page, lastPage), "noop:0"))
	if page < lastPage {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next »", fmt.Sprintf("list:%d", page+1)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row), true
}

// settingsKeyboard builds the toggle buttons under /settings.
func settingsKeyboard(s *model.UserSettings) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"Notifications: "+onOff(s.Notifications), "settings:notify"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"Auto-categorize: "+onOff(s.AutoCategorize), "settings:autocat"),
		),
	)
}
