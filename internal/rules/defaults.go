package rules

// Default returns the built-in category rules used when no custom rules are
// configured.
func Default() *RuleSet {
	set, err := New([]Rule{
		{Label: "Invoices", Match: SubjectContains("invoice")},
		{Label: "Newsletters", Match: SubjectContains("newsletter")},
		{Label: "Shopping", Match: AnyOf(SubjectContains("order confirmation"), SubjectContains("purchase"))},
		{Label: "Shipping", Match: AnyOf(SubjectContains("shipment"), SubjectContains("tracking"))},
		{Label: "Gaming", Match: AnyOf(SubjectContains("game"), SubjectContains("gaming"))},
		{Label: "Promotions", Match: AnyOf(SubjectContains("sale"), SubjectContains("discount"))},
		{Label: "Subscriptions", Match: AnyOf(SubjectContains("subscription"), SubjectContains("renewal"))},
		{Label: "Support", Match: AnyOf(SubjectContains("support"), SubjectContains("help"))},
		{Label: "Social", Match: AnyOf(SubjectContains("social"), SubjectContains("friend request"))},
		{Label: "Security", Match: AnyOf(SubjectContains("security alert"), SubjectContains("password reset"))},
	})
	if err != nil {
		panic(err)
	}
	return set
}
