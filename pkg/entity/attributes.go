package entity

import (
	"strings"
	"time"

	"github.com/kittclouds/memoria/internal/store"
)

// defaultAttrThreshold is the minimum rolling confidence an attribute
// slot must hold; an observation that would drop it below this is
// still merged but the slot is dropped from the entity at the end of
// the same Observe call rather than surfaced to callers (§4.4).
const defaultAttrThreshold = 0.5

// ruleAttribute is one fixed-vocabulary, first-match pattern list for
// a single attribute slot.
type ruleAttribute struct {
	slot       string
	patterns   []string
	confidence float64
}

// categoryAttribute groups several surface patterns under one
// canonical category/price label.
type categoryAttribute struct {
	slot     string
	label    string
	patterns []string
}

var singleValueAttrs = []ruleAttribute{
	{"color", []string{"金黄色", "银色", "粉红色", "紫红色", "橙黄色", "红色", "红", "绿色", "绿",
		"蓝色", "蓝", "黄色", "黄", "黑色", "黑", "白色", "白", "紫色", "紫", "橙色", "橙",
		"粉色", "粉", "棕色", "褐", "灰色", "灰", "银", "金", "golden"}, 0.7},
	{"taste", []string{"甜甜的", "香香", "鲜美", "浓郁", "清淡", "甜", "酸", "苦", "辣", "咸", "淡",
		"美味", "好吃", "难吃", "香"}, 0.7},
	{"texture", []string{"酥脆", "柔软", "坚硬", "光滑", "粘稠", "脆", "软", "硬", "滑", "粘", "干",
		"粗糙", "湿润", "多汁", "松软"}, 0.7},
	{"size", []string{"巨大", "超大", "特大", "微小", "迷你", "大号", "小号", "大", "小", "中等",
		"中", "细", "粗", "厚", "薄", "长", "短"}, 0.7},
}

var categoryAttrs = []categoryAttribute{
	{"category", "水果", []string{"水果", "苹果", "香蕉", "橙子"}},
	{"category", "蔬菜", []string{"蔬菜", "白菜", "萝卜", "西红柿"}},
	{"category", "电子产品", []string{"手机", "电脑", "平板", "电子产品"}},
	{"category", "食物", []string{"食物", "饭", "面", "面包", "蛋糕"}},
	{"category", "饮料", []string{"饮料", "水", "茶", "咖啡", "果汁"}},
	{"category", "交通工具", []string{"车", "汽车", "自行车", "飞机"}},
	{"price", "昂贵", []string{"贵", "昂贵", "价格高"}},
	{"price", "便宜", []string{"便宜", "实惠", "不贵"}},
	{"price", "中等", []string{"适中", "一般", "还行"}},
}

// AttributeExtractor grows Entity.Attributes from event context text
// using the same fixed-vocabulary, first-match-wins rule table the
// Event Extractor falls back to for events (§4.4).
type AttributeExtractor struct {
	threshold float64
}

// NewAttributeExtractor builds an extractor with the default 0.5
// confidence floor.
func NewAttributeExtractor() *AttributeExtractor {
	return &AttributeExtractor{threshold: defaultAttrThreshold}
}

// WithThreshold overrides the confidence floor, clamped to [0, 1].
func (a *AttributeExtractor) WithThreshold(threshold float64) *AttributeExtractor {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	a.threshold = threshold
	return a
}

// Observe extracts attribute candidates from context and merges each
// into e.Attributes with a rolling confidence-weighted mean. Slots
// whose merged confidence falls below the floor are dropped.
func (a *AttributeExtractor) Observe(e *store.Entity, context string) error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]store.AttributeValue)
	}
	now := time.Now().UnixMilli()

	for _, rule := range singleValueAttrs {
		if value, ok := firstMatch(context, rule.patterns); ok {
			a.merge(e, rule.slot, value, rule.confidence, now)
		}
	}
	for _, slot := range []string{"category", "price"} {
		var group []categoryAttribute
		for _, c := range categoryAttrs {
			if c.slot == slot {
				group = append(group, c)
			}
		}
		for _, c := range group {
			if containsAnyPattern(context, c.patterns) {
				a.merge(e, slot, c.label, 0.6, now)
				break
			}
		}
	}
	a.prune(e)
	return nil
}

func (a *AttributeExtractor) merge(e *store.Entity, slot, value string, confidence float64, now int64) {
	existing, ok := e.Attributes[slot]
	if !ok {
		e.Attributes[slot] = store.AttributeValue{
			Value:      value,
			Confidence: confidence,
			Count:      1,
			FirstSeen:  now,
			LastSeen:   now,
		}
		return
	}
	existing.Count++
	existing.LastSeen = now
	existing.Value = value
	existing.Confidence = (existing.Confidence*float64(existing.Count-1) + confidence) / float64(existing.Count)
	e.Attributes[slot] = existing
}

func (a *AttributeExtractor) prune(e *store.Entity) {
	for slot, v := range e.Attributes {
		if v.Confidence < a.threshold {
			delete(e.Attributes, slot)
		}
	}
}

func firstMatch(context string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if strings.Contains(context, p) {
			return p, true
		}
	}
	return "", false
}

func containsAnyPattern(context string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(context, p) {
			return true
		}
	}
	return false
}
