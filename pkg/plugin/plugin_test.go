package plugin

import "testing"

func TestPermissionSatisfiesIsLinear(t *testing.T) {
	cases := []struct {
		granted, required Permission
		want               bool
	}{
		{ReadOnly, ReadOnly, true},
		{ReadOnly, ReadWriteDerived, false},
		{ReadWriteDerived, ReadOnly, true},
		{ReadWriteEvents, ReadWriteDerived, true},
		{ReadWriteDerived, ReadWriteEvents, false},
	}
	for _, c := range cases {
		if got := c.granted.satisfies(c.required); got != c.want {
			t.Errorf("%v.satisfies(%v) = %v, want %v", c.granted, c.required, got, c.want)
		}
	}
}

func TestSubscriptionMatchesAll(t *testing.T) {
	sub := Subscription{Kind: SubscribeAll}
	if !sub.Matches("anything", "anything") {
		t.Fatal("SubscribeAll should match every event")
	}
}

func TestSubscriptionMatchesActions(t *testing.T) {
	sub := Subscription{Kind: SubscribeActions, Actions: []string{"eat", "drink"}}
	if !sub.Matches("eat", "apple") {
		t.Fatal("expected action match")
	}
	if sub.Matches("sleep", "bed") {
		t.Fatal("unexpected action match")
	}
}

func TestSubscriptionMatchesTargetPattern(t *testing.T) {
	sub := Subscription{Kind: SubscribeTargetPattern, Pattern: "coffee"}
	if !sub.Matches("drink", "iced coffee") {
		t.Fatal("expected substring match")
	}
	if sub.Matches("drink", "tea") {
		t.Fatal("unexpected substring match")
	}
}

func TestSubscriptionCustomNeverMatchesHere(t *testing.T) {
	sub := Subscription{Kind: SubscribeCustom}
	if sub.Matches("eat", "apple") {
		t.Fatal("SubscribeCustom has no generic predicate to satisfy")
	}
}
