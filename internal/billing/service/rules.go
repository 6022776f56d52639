package service

import (
	billingdomain "github.com/aulatech/cobranza/internal/billing/domain"
	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
)

// ruleMatcher is one specificity tier in the charge-rule fallback chain.
// Tiers are tried in order; the first tier with a matching rule wins. New
// tiers slot into the list without touching the others.
type ruleMatcher struct {
	name  string
	match func(rule billingdomain.ChargeRule, group directorydomain.Group) bool
}

var ruleMatchers = []ruleMatcher{
	{
		name: "group",
		match: func(rule billingdomain.ChargeRule, group directorydomain.Group) bool {
			return rule.GroupID != nil && *rule.GroupID == group.ID
		},
	},
	{
		name: "grade+shift",
		match: func(rule billingdomain.ChargeRule, group directorydomain.Group) bool {
			return rule.GroupID == nil &&
				rule.Grade != nil && *rule.Grade == group.Grade &&
				rule.Shift != nil && *rule.Shift == group.Shift
		},
	},
	{
		name: "grade",
		match: func(rule billingdomain.ChargeRule, group directorydomain.Group) bool {
			return rule.GroupID == nil && rule.Shift == nil &&
				rule.Grade != nil && *rule.Grade == group.Grade
		},
	},
	{
		name: "generic",
		match: func(rule billingdomain.ChargeRule, group directorydomain.Group) bool {
			return rule.GroupID == nil && rule.Grade == nil && rule.Shift == nil
		},
	},
}

// resolveChargeRule walks the specificity tiers and returns the applicable
// rule plus the tier name that selected it. Two rules in the same tier is a
// configuration conflict.
func resolveChargeRule(rules []billingdomain.ChargeRule, group directorydomain.Group) (billingdomain.ChargeRule, string, error) {
	for _, matcher := range ruleMatchers {
		var found []billingdomain.ChargeRule
		for _, rule := range rules {
			if rule.Active && matcher.match(rule, group) {
				found = append(found, rule)
			}
		}
		if len(found) > 1 {
			return billingdomain.ChargeRule{}, "", billingdomain.ErrDuplicateRule
		}
		if len(found) == 1 {
			return found[0], matcher.name, nil
		}
	}
	return billingdomain.ChargeRule{}, "", billingdomain.ErrRuleNotFound
}
