package chatbot

import (
	"strings"
	"unicode"
)

type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentPricing  Intent = "pricing"
	IntentPlans    Intent = "plans"
	IntentShipping Intent = "shipping"
	IntentSupport  Intent = "support"
	IntentUnknown  Intent = "unknown"
)

type intentRule struct {
	intent   Intent
	keywords []string
	answer   string
}

// Rules are checked in order; the first rule with a matching keyword wins.
var intentRules = []intentRule{
	{
		intent:   IntentPlans,
		keywords: []string{"plan", "plans", "subscription", "yearly", "annual", "monthly", "license", "licence"},
		answer: "Products are sold per unit, per user or on a yearly plan. " +
			"A yearly plan is billed as twelve months of the unit price up front.",
	},
	{
		intent:   IntentPricing,
		keywords: []string{"price", "prices", "pricing", "cost", "costs", "discount", "tax", "vat", "total"},
		answer: "Prices are listed before tax. Tax is added to the cart subtotal at checkout, " +
			"and the cart page always shows the subtotal, tax and grand total.",
	},
	{
		intent:   IntentShipping,
		keywords: []string{"shipping", "delivery", "deliver", "ship", "shipped", "download", "activation"},
		answer: "Software is delivered digitally. Activation details are sent as soon as " +
			"your order is paid, and you can follow its status under your orders.",
	},
	{
		intent:   IntentSupport,
		keywords: []string{"help", "support", "contact", "human", "agent", "refund", "problem", "issue"},
		answer: "Our support team is happy to help. Send us a message through the contact " +
			"form and we will reply within one business day.",
	},
	{
		intent:   IntentGreeting,
		keywords: []string{"hi", "hello", "hey", "greetings", "morning", "evening"},
		answer:   "Hello! Ask me about our products, plans, prices or delivery.",
	},
}

const defaultAnswer = "Sorry, I did not catch that. You can ask about prices, " +
	"subscription plans, delivery, or how to contact support."

// Classify matches whole words of msg against the keyword rules.
func Classify(msg string) (Intent, string) {
	words := strings.FieldsFunc(strings.ToLower(msg), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}

	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if _, ok := seen[kw]; ok {
				return rule.intent, rule.answer
			}
		}
	}
	return IntentUnknown, ""
}
