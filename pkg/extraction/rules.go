package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kittclouds/memoria/pkg/lexicon"
	"github.com/kittclouds/memoria/pkg/memerr"
)

// RuleEngine is the regex + verb-table fallback extractor invoked when
// the provider is unreachable, times out, or returns non-JSON. It is
// intentionally narrow: a handful of verbs and a Chinese/Arabic numeric
// lexicon, grounded on the same verb table the original rule engine
// used, with verbs normalized through the pkg/lexicon dictionary lookup.
type RuleEngine struct {
	verbs   *lexicon.Dictionary
	numbers map[string]float64
	units   map[string]bool
}

// defaultVerbTable maps a handful of common action verbs (Chinese
// and English) to their normalized action label, mirroring the
// original's action_map.
var defaultVerbTable = []lexicon.Entry{
	{Surface: "吃", Tag: "吃"}, {Surface: "eat", Tag: "eat"}, {Surface: "ate", Tag: "eat"},
	{Surface: "喝", Tag: "喝"}, {Surface: "drink", Tag: "drink"}, {Surface: "drank", Tag: "drink"},
	{Surface: "买", Tag: "购买"}, {Surface: "购", Tag: "购买"}, {Surface: "buy", Tag: "buy"}, {Surface: "bought", Tag: "buy"},
	{Surface: "去", Tag: "去"}, {Surface: "go", Tag: "go"}, {Surface: "went", Tag: "go"},
	{Surface: "来", Tag: "来"},
	{Surface: "做", Tag: "做"}, {Surface: "do", Tag: "do"}, {Surface: "did", Tag: "do"},
	{Surface: "完成", Tag: "完成"}, {Surface: "finish", Tag: "finish"}, {Surface: "finished", Tag: "finish"},
	{Surface: "开始", Tag: "开始"}, {Surface: "start", Tag: "start"}, {Surface: "started", Tag: "start"},
	{Surface: "结束", Tag: "结束"},
	{Surface: "看", Tag: "看"}, {Surface: "watch", Tag: "watch"}, {Surface: "watched", Tag: "watch"},
	{Surface: "读", Tag: "阅读"}, {Surface: "read", Tag: "read"},
	{Surface: "写", Tag: "写"}, {Surface: "write", Tag: "write"}, {Surface: "wrote", Tag: "write"},
	{Surface: "听", Tag: "听"}, {Surface: "listen", Tag: "listen"}, {Surface: "listened", Tag: "listen"},
	{Surface: "说", Tag: "说"},
	{Surface: "玩", Tag: "玩"}, {Surface: "play", Tag: "play"}, {Surface: "played", Tag: "play"},
	{Surface: "运动", Tag: "运动"}, {Surface: "exercise", Tag: "exercise"}, {Surface: "exercised", Tag: "exercise"},
	{Surface: "跑步", Tag: "跑步"}, {Surface: "run", Tag: "run"}, {Surface: "ran", Tag: "run"},
	{Surface: "睡觉", Tag: "睡觉"}, {Surface: "sleep", Tag: "sleep"}, {Surface: "slept", Tag: "sleep"},
	{Surface: "起床", Tag: "起床"},
	{Surface: "工作", Tag: "工作"}, {Surface: "work", Tag: "work"}, {Surface: "worked", Tag: "work"},
	{Surface: "学习", Tag: "学习"}, {Surface: "study", Tag: "study"}, {Surface: "studied", Tag: "study"},
	{Surface: "消费", Tag: "消费"},
	{Surface: "支付", Tag: "支付"}, {Surface: "pay", Tag: "pay"}, {Surface: "paid", Tag: "pay"},
}

// chineseNumerals maps the Chinese numeral lexicon to Arabic values.
var chineseNumerals = map[string]float64{
	"一": 1, "二": 2, "两": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

var unitWords = []string{
	"个", "只", "件", "台", "本", "张", "次", "分钟", "小时", "天", "周", "月",
	"年", "公斤", "克", "斤", "两", "毫升", "升", "米", "公里", "元", "块", "百", "千", "万",
}

// NewRuleEngine compiles the verb-table automaton once for reuse across
// every rule-fallback invocation.
func NewRuleEngine() (*RuleEngine, error) {
	dict, err := lexicon.Compile(defaultVerbTable)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindConfig, "compile verb table", err)
	}
	units := make(map[string]bool, len(unitWords))
	for _, u := range unitWords {
		units[u] = true
	}
	return &RuleEngine{verbs: dict, numbers: chineseNumerals, units: units}, nil
}

// verbPattern1 and verbPattern2 list the Chinese verb surface forms
// inline, so the regexes only match known action verbs rather than
// arbitrary leading characters.
var verbPattern1 = regexp.MustCompile(
	`([吃喝买购去来做看读写听说玩运动跑睡起工作学习消费支付]+)(了|过)?(\d+|一|两|二|三|四|五|六|七|八|九|十|百|千|万)([个只件台本张次分钟小时天周月年公斤克斤两毫升升米公里元块百千万]+)(.+)`,
)

var verbPattern2 = regexp.MustCompile(
	`(去|来|吃|喝|买|做|看|读|写|听|说|玩|运动|跑|睡|起|工作|学习)(了|过)?(.+)`,
)

// Extract runs the rule fallback over text. It never returns an error
// for "no match found" — an empty slice is a normal, expected result;
// errors are reserved for malformed quantity parses during a match.
func (r *RuleEngine) Extract(text string) ([]ExtractedEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	if m := verbPattern1.FindStringSubmatch(text); m != nil {
		action := r.normalizeAction(m[1])
		qty, err := r.parseQuantity(m[3])
		if err != nil {
			return nil, err
		}
		unit := m[4]
		target := strings.TrimSpace(m[5])
		return []ExtractedEvent{{
			Action:     action,
			Target:     target,
			Quantity:   &qty,
			Unit:       &unit,
			Confidence: 0.7,
			Method:     MethodRule,
		}}, nil
	}

	if m := verbPattern2.FindStringSubmatch(text); m != nil {
		action := r.normalizeAction(m[1])
		target := strings.TrimSpace(m[3])
		if target == "" {
			return nil, nil
		}
		return []ExtractedEvent{{
			Action:     action,
			Target:     target,
			Confidence: 0.5,
			Method:     MethodRule,
		}}, nil
	}

	for _, tok := range lexicon.TokenizeWithOffsets(text) {
		if tags := r.verbs.Lookup(tok.Text); len(tags) > 0 {
			target := strings.TrimSpace(text[tok.End:])
			if target == "" {
				continue
			}
			return []ExtractedEvent{{Action: tags[0], Target: target, Confidence: 0.5, Method: MethodRule}}, nil
		}
	}

	return nil, nil
}

func (r *RuleEngine) normalizeAction(verb string) string {
	if tags := r.verbs.Lookup(verb); len(tags) > 0 {
		return tags[0]
	}
	return verb
}

// parseQuantity accepts Arabic digits and the Chinese numeral lexicon
// (一..十, 两); unknown words fail with a typed validation error rather
// than a panic, per spec §8.
func (r *RuleEngine) parseQuantity(text string) (float64, error) {
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return n, nil
	}
	if n, ok := r.numbers[text]; ok {
		return n, nil
	}
	if strings.HasSuffix(text, "十几") {
		base, err := r.parseQuantity(strings.TrimSuffix(text, "十几"))
		if err != nil {
			return 0, err
		}
		return 10 + base, nil
	}
	return 0, memerr.New(memerr.KindValidation, "unrecognized quantity word: "+text)
}

// HasTimeInfo reports whether text contains a recognizable time phrase
// token, used by the service to decide whether to invoke ParseTimePhrase.
func (r *RuleEngine) HasTimeInfo(text string) bool {
	keywords := []string{
		"今天", "昨天", "前天", "明天", "后天",
		"上午", "下午", "早上", "晚上", "夜里", "中午",
		"本周", "上周", "下周", "天前", "周前", "月前",
		"today", "yesterday", "tomorrow", "morning", "afternoon", "evening",
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) || strings.Contains(text, k) {
			return true
		}
	}
	return false
}
