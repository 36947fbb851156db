package entity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
)

func TestObserveExtractsColorAndTaste(t *testing.T) {
	a := NewAttributeExtractor()
	e := &store.Entity{Attributes: map[string]store.AttributeValue{}}
	require.NoError(t, a.Observe(e, "红色的甜甜的苹果"))

	require.Equal(t, "红色", e.Attributes["color"].Value)
	require.Equal(t, "甜甜的", e.Attributes["taste"].Value)
}

func TestObserveRepeatGrowsCountKeepsConfidence(t *testing.T) {
	a := NewAttributeExtractor()
	e := &store.Entity{Attributes: map[string]store.AttributeValue{}}
	require.NoError(t, a.Observe(e, "红色的苹果"))
	first := e.Attributes["color"].Confidence
	require.NoError(t, a.Observe(e, "红色的苹果"))
	second := e.Attributes["color"]

	require.Equal(t, 2, second.Count)
	require.InDelta(t, first, second.Confidence, 1e-9)
}

func TestObserveDropsAttributeBelowThreshold(t *testing.T) {
	a := NewAttributeExtractor().WithThreshold(0.65)
	e := &store.Entity{Attributes: map[string]store.AttributeValue{
		"category": {Value: "水果", Confidence: 0.6, Count: 1},
	}}
	require.NoError(t, a.Observe(e, "随便写点什么"))
	_, ok := e.Attributes["category"]
	require.False(t, ok)
}

func TestObserveMatchesCategoryGroup(t *testing.T) {
	a := NewAttributeExtractor()
	e := &store.Entity{Attributes: map[string]store.AttributeValue{}}
	require.NoError(t, a.Observe(e, "买了一个苹果"))
	require.Equal(t, "水果", e.Attributes["category"].Value)
}
