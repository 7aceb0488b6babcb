package bot

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"notesbot/internal/model"
)

// FilterArgs holds the parsed arguments of a filter command.
type FilterArgs struct {
	SubscriptionID int64
	Scope          model.FilterScope
	Value          string
}

// ParseFilterCommand parses arguments for /include, /exclude, etc.
// Format: <subscription_id> [-s title|content|all] <value...>
func ParseFilterCommand(args string) (FilterArgs, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return FilterArgs{}, fmt.Errorf("usage: <subscription_id> [-s title|content|all] <value>")
	}

	subID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return FilterArgs{}, fmt.Errorf("invalid subscription ID %q", parts[0])
	}

	scope := model.ScopeAll
	rest := parts[1:]

	if len(rest) >= 2 && rest[0] == "-s" {
		switch rest[1] {
		case "title":
			scope = model.ScopeTitle
		case "content":
			scope = model.ScopeContent
		case "all":
			scope = model.ScopeAll
		default:
			return FilterArgs{}, fmt.Errorf("invalid scope %q, use: title, content, all", rest[1])
		}
		rest = rest[2:]
	}

	if len(rest) == 0 {
		return FilterArgs{}, fmt.Errorf("filter value is required")
	}

	return FilterArgs{
		SubscriptionID: subID,
		Scope:          scope,
		Value:          strings.Join(rest, " "),
	}, nil
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("subscription ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subscription ID %q", s)
	}
	return id, nil
}

// ParseIntervalArgs extracts a subscription ID and interval in minutes.
func ParseIntervalArgs(args string) (int64, int, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("usage: /interval <id> <minutes>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid subscription ID %q", parts[0])
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil || mins < 1 || mins > 1440 {
		return 0, 0, fmt.Errorf("interval must be between 1 and 1440 minutes")
	}
	return id, mins, nil
}

// splitPlatformArg splits "/add <platform> [identifier]" style arguments.
func splitPlatformArg(args string) (model.Platform, string, bool) {
	name, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	platform, ok := model.ParsePlatform(strings.ToLower(name))
	if !ok {
		return "", "", false
	}
	return platform, strings.TrimSpace(rest), true
}

// NormalizeIdentifier canonicalizes user input into the identifier an
// adapter expects, so the same source typed two ways dedupes to one
// subscription.
func NormalizeIdentifier(platform model.Platform, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("the identifier cannot be empty")
	}

	switch platform {
	case model.PlatformTelegram:
		s = strings.TrimPrefix(s, "https://t.me/s/")
		s = strings.TrimPrefix(s, "https://t.me/")
		s = strings.TrimPrefix(s, "t.me/")
		s = strings.TrimPrefix(s, "@")
		s = strings.TrimSuffix(s, "/")
		if s == "" || strings.ContainsAny(s, " /") {
			return "", fmt.Errorf("that does not look like a channel username")
		}
		return s, nil

	case model.PlatformTwitter:
		s = strings.TrimPrefix(s, "https://twitter.com/")
		s = strings.TrimPrefix(s, "https://x.com/")
		s = strings.TrimPrefix(s, "@")
		if s == "" || strings.ContainsAny(s, " /") {
			return "", fmt.Errorf("that does not look like a username")
		}
		return s, nil

	case model.PlatformReddit:
		s = strings.TrimPrefix(s, "https://www.reddit.com/r/")
		s = strings.TrimPrefix(s, "https://reddit.com/r/")
		s = strings.TrimPrefix(s, "r/")
		s = strings.TrimSuffix(s, "/")
		if s == "" || strings.ContainsAny(s, " /") {
			return "", fmt.Errorf("that does not look like a subreddit name")
		}
		return s, nil

	case model.PlatformYouTube:
		if i := strings.Index(s, "/channel/"); i >= 0 {
			s = s[i+len("/channel/"):]
			s = strings.TrimSuffix(s, "/")
		}
		if s == "" || strings.ContainsAny(s, " /") {
			return "", fmt.Errorf("send the channel ID (it starts with UC) or a /channel/ URL")
		}
		return s, nil

	case model.PlatformVK:
		s = strings.TrimPrefix(s, "https://vk.com/")
		s = strings.TrimPrefix(s, "vk.com/")
		s = strings.TrimSuffix(s, "/")
		if s == "" || strings.ContainsAny(s, " /") {
			return "", fmt.Errorf("that does not look like a VK group or user name")
		}
		return s, nil

	case model.PlatformWeb, model.PlatformRSS:
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", fmt.Errorf("send a full URL starting with http:// or https://")
		}
		return u.String(), nil
	}
	return s, nil
}

// displayName derives a human-readable label for a new subscription.
func displayName(platform model.Platform, ident string) string {
	switch platform {
	case model.PlatformTwitter:
		return "@" + ident
	case model.PlatformReddit:
		return "r/" + ident
	case model.PlatformWeb, model.PlatformRSS:
		if u, err := url.Parse(ident); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return ident
}

// promptFor returns the identifier prompt shown after picking a platform.
func promptFor(platform model.Platform) string {
	switch platform {
	case model.PlatformTelegram:
		return "Send the channel username (e.g. @durov or t.me/durov):"
	case model.PlatformTwitter:
		return "Send the username (e.g. @jack):"
	case model.PlatformReddit:
		return "Send the subreddit name (e.g. r/golang):"
	case model.PlatformYouTube:
		return "Send the channel ID (starts with UC) or a youtube.com/channel/ URL:"
	case model.PlatformVK:
		return "Send the VK group or user name (e.g. vk.com/team):"
	case model.PlatformWeb:
		return "Send the page URL to watch (e.g. https://example.com/blog):"
	case model.PlatformRSS:
		return "Send the feed URL (e.g. https://example.com/feed.xml):"
	}
	return "Send the source identifier:"
}
