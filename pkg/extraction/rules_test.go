package extraction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuleEngineExtractsQuantityAndUnit(t *testing.T) {
	r, err := NewRuleEngine()
	require.NoError(t, err)

	events, err := r.Extract("吃了3个苹果")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "吃", events[0].Action)
	require.Equal(t, "苹果", events[0].Target)
	require.NotNil(t, events[0].Quantity)
	require.Equal(t, 3.0, *events[0].Quantity)
	require.Equal(t, "个", *events[0].Unit)
	require.Equal(t, MethodRule, events[0].Method)
}

func TestRuleEngineChineseNumeral(t *testing.T) {
	r, err := NewRuleEngine()
	require.NoError(t, err)

	events, err := r.Extract("买了两本书")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 2.0, *events[0].Quantity)
}

func TestRuleEngineNoQuantityFallback(t *testing.T) {
	r, err := NewRuleEngine()
	require.NoError(t, err)

	events, err := r.Extract("去跑步")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "去", events[0].Action)
	require.Equal(t, "跑步", events[0].Target)
	require.Nil(t, events[0].Quantity)
	require.Less(t, events[0].Confidence, 0.7)
}

func TestRuleEngineNoMatchIsNotAnError(t *testing.T) {
	r, err := NewRuleEngine()
	require.NoError(t, err)
	events, err := r.Extract("completely unrelated sentence with no verbs")
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestRuleEngineUnknownQuantityWordFailsTyped(t *testing.T) {
	r, err := NewRuleEngine()
	require.NoError(t, err)
	_, err = r.parseQuantity("壹")
	require.Error(t, err)
}

func TestHasTimeInfo(t *testing.T) {
	r, err := NewRuleEngine()
	require.NoError(t, err)
	require.True(t, r.HasTimeInfo("今天吃了苹果"))
	require.False(t, r.HasTimeInfo("吃了苹果"))
}
