package entity

import (
	"strings"

	"github.com/kittclouds/memoria/internal/store"
)

// conceptKeywords etc. are checked in this exact order — concept before
// person before organization before place — so that a context holding
// both a concept keyword and a person keyword (e.g. "朋友的想法")
// resolves to Concept rather than Person.
var (
	conceptKeywords = []string{"想法", "概念", "理论", "idea", "concept", "theory"}
	personKeywords  = []string{"朋友", "同事", "先生", "女士", "医生", "老师", "friend", "colleague"}
	orgKeywords     = []string{"公司", "股票", "企业", "机构", "company", "corp", "inc"}
	placeKeywords   = []string{"去", "到", "地方", "城市", "国家", "went to", "city", "country"}
)

// InferType infers an EntityType from surrounding context text using
// the fixed concept > person > organization > place > object ordering.
func InferType(context string) store.EntityType {
	lower := strings.ToLower(context)
	switch {
	case containsAny(lower, conceptKeywords):
		return store.EntityConcept
	case containsAny(lower, personKeywords):
		return store.EntityPerson
	case containsAny(lower, orgKeywords):
		return store.EntityOrganization
	case containsAny(lower, placeKeywords):
		return store.EntityPlace
	default:
		return store.EntityObject
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// domainLexicon maps a coarse entity domain to the keywords that
// suggest it. Disambiguation context-scoring does not read it; it
// scores candidates with InferType.
var domainLexicon = map[store.EntityType][]string{
	store.EntityObject:       {"吃", "喝", "水果", "食物", "food", "fruit"},
	store.EntityOrganization: {"买", "股票", "公司", "投资", "buy", "stock"},
	store.EntityPlace:        {"去", "到", "地方", "城市"},
	store.EntityPerson:       {"人", "朋友", "同事"},
}
