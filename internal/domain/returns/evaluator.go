package returns

import (
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Evaluation is the outcome of running a tenant policy against a submission.
// It is a pure computation: the same policy snapshot and items always yield
// the same result.
type Evaluation struct {
	Breakdown RefundBreakdown
	// AutoApprove means the request clears every gate for system approval:
	// final amount strictly under the ceiling, no manual-review rule, no
	// blocked item, no missing evidence
	AutoApprove bool
	// ManualReview means at least one matched rule forces a human decision
	ManualReview bool
	// Blocked lists fulfillment line IDs forbidden from return by rule
	Blocked []string
	// MissingEvidence lists fulfillment line IDs whose reason demands photo
	// evidence that was not supplied
	MissingEvidence []string
}

// MissingEvidence lists fulfillment line IDs whose reason demands photo
// evidence that was not supplied. Runs before full evaluation so an evidence
// gap surfaces even when the policy itself is structurally broken.
func MissingEvidence(policy *PolicySnapshot, items []ReturnLineItem) []string {
	var missing []string
	for i := range items {
		if policy.RequiresEvidence(items[i].Reason) && !items[i].HasPhotos() {
			missing = append(missing, items[i].FulfillmentLineID)
		}
	}
	return missing
}

// Evaluate runs the policy against the requested items and computes the
// server-side refund breakdown. Rules apply first-match per item in
// ascending priority. Components round to 2 decimal places; the final amount
// clamps at zero (a fee larger than the refund never produces a charge).
func Evaluate(policy *PolicySnapshot, items []ReturnLineItem, outcome PreferredOutcome) (*Evaluation, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	eval := &Evaluation{}
	itemTotal := decimal.Zero
	taxRefund := decimal.Zero
	discount := decimal.Zero
	returnFee := decimal.Zero

	for i := range items {
		item := &items[i]
		rule := policy.MatchRule(item)
		if rule != nil && rule.Effect.Block {
			eval.Blocked = append(eval.Blocked, item.FulfillmentLineID)
			continue
		}
		if policy.RequiresEvidence(item.Reason) && !item.HasPhotos() {
			eval.MissingEvidence = append(eval.MissingEvidence, item.FulfillmentLineID)
		}

		contribution := item.Contribution()
		itemTotal = itemTotal.Add(contribution)
		taxRefund = taxRefund.Add(item.TaxContribution())

		if rule == nil {
			continue
		}
		if rule.Effect.ManualReview {
			eval.ManualReview = true
		}
		if !rule.Effect.FeeFlat.IsZero() {
			returnFee = returnFee.Add(rule.Effect.FeeFlat)
		}
		if !rule.Effect.FeePercent.IsZero() {
			returnFee = returnFee.Add(contribution.Mul(rule.Effect.FeePercent).Div(oneHundred))
		}
		if !rule.Effect.DiscountPercent.IsZero() {
			discount = discount.Add(contribution.Mul(rule.Effect.DiscountPercent).Div(oneHundred))
		}
	}

	incentive := decimal.Zero
	if outcome == OutcomeStoreCredit {
		bonus := policy.StoreCreditBonusPercent
		if bonus.IsZero() {
			bonus = DefaultStoreCreditBonusPercent
		}
		incentive = itemTotal.Mul(bonus).Div(oneHundred)
	}

	final := itemTotal.Add(taxRefund).Add(incentive).Sub(discount).Sub(returnFee)
	if final.IsNegative() {
		final = decimal.Zero
	}
	if !outcome.IsMonetary() {
		// Exchanges and replacements pay nothing out; the breakdown is still
		// kept for the audit record
		final = decimal.Zero
	}

	eval.Breakdown = RefundBreakdown{
		ItemTotal:   itemTotal.Round(2),
		TaxRefund:   taxRefund.Round(2),
		Discount:    discount.Round(2),
		Incentive:   incentive.Round(2),
		ReturnFee:   returnFee.Round(2),
		FinalAmount: final.Round(2),
		Currency:    policy.Currency,
	}

	eval.AutoApprove = policy.AutoApprovalCeiling != nil &&
		eval.Breakdown.FinalAmount.LessThan(*policy.AutoApprovalCeiling) &&
		!eval.ManualReview &&
		len(eval.Blocked) == 0 &&
		len(eval.MissingEvidence) == 0

	return eval, nil
}
