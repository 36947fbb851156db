package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseTimePhrase maps a relative time expression (today/yesterday,
// N-days-ago, weekday names with this/last/next-week prefixes, and
// morning/afternoon/evening modifiers) to an absolute UTC timestamp,
// resolved against now in loc (the install's local zone). It returns
// false if no phrase is recognized, in which case the caller should
// fall back to the raw memory's created-at.
func ParseTimePhrase(phrase string, now time.Time, loc *time.Location) (time.Time, bool) {
	text := strings.TrimSpace(phrase)
	if text == "" {
		return time.Time{}, false
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch text {
	case "today", "今天":
		return today.UTC(), true
	case "yesterday", "昨天":
		return today.AddDate(0, 0, -1).UTC(), true
	case "the day before yesterday", "前天":
		return today.AddDate(0, 0, -2).UTC(), true
	case "tomorrow", "明天":
		return today.AddDate(0, 0, 1).UTC(), true
	case "the day after tomorrow", "后天":
		return today.AddDate(0, 0, 2).UTC(), true
	case "this morning", "today morning", "今天上午", "今天早上":
		return atHour(today, 9).UTC(), true
	case "this afternoon", "today afternoon", "今天下午":
		return atHour(today, 14).UTC(), true
	case "tonight", "this evening", "今天晚上", "今天夜里":
		return atHour(today, 20).UTC(), true
	}

	if m := daysAgoRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return today.AddDate(0, 0, -n).UTC(), true
		}
	}

	if t, ok := parseWeekdayPhrase(text, today); ok {
		return t.UTC(), true
	}

	return time.Time{}, false
}

var daysAgoRe = regexp.MustCompile(`^(\d+)\s*(?:days? ago|天前)$`)

func atHour(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
}

// weekdayNames maps recognized weekday tokens (English and Chinese) to
// time.Weekday, treating Monday as the first day per the original's
// ISO-style week numbering.
var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "一": time.Monday, "周一": time.Monday,
	"tuesday": time.Tuesday, "二": time.Tuesday, "周二": time.Tuesday,
	"wednesday": time.Wednesday, "三": time.Wednesday, "周三": time.Wednesday,
	"thursday": time.Thursday, "四": time.Thursday, "周四": time.Thursday,
	"friday": time.Friday, "五": time.Friday, "周五": time.Friday,
	"saturday": time.Saturday, "六": time.Saturday, "周六": time.Saturday,
	"sunday": time.Sunday, "日": time.Sunday, "天": time.Sunday, "周日": time.Sunday, "周天": time.Sunday,
}

var weekPrefixRe = regexp.MustCompile(`^(this week|last week|next week|本周|上周|下周)?\s*(.+)$`)

// parseWeekdayPhrase handles "last week Wednesday", "next week Friday",
// "上周三", "下周五", and bare "周三" (meaning this week's Wednesday).
func parseWeekdayPhrase(text string, today time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	m := weekPrefixRe.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, false
	}
	prefix, rest := m[1], strings.TrimSpace(m[2])
	target, ok := weekdayNames[rest]
	if !ok {
		return time.Time{}, false
	}

	currentWeekday := int(today.Weekday())
	if currentWeekday == 0 {
		currentWeekday = 7
	}
	targetNum := int(target)
	if targetNum == 0 {
		targetNum = 7
	}
	diff := targetNum - currentWeekday

	switch prefix {
	case "last week", "上周":
		diff -= 7
	case "next week", "下周":
		diff += 7
	case "this week", "本周", "":
		// diff as computed: this week's occurrence of the weekday
	}

	return today.AddDate(0, 0, diff), true
}
