package returns

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func testPolicy() *PolicySnapshot {
	ceiling := decimal.NewFromInt(50)
	return &PolicySnapshot{
		Currency:                "USD",
		AutoApprovalCeiling:     &ceiling,
		StoreCreditBonusPercent: decimal.NewFromInt(10),
		ReturnWindowDays:        30,
	}
}

func lineItem(t *testing.T, lineID string, qty int, price, tax string, reason ReasonCode, tags []string, photos []string) ReturnLineItem {
	t.Helper()
	item, err := NewReturnLineItem(EligibleLineItem{
		FulfillmentLineID: lineID,
		SKU:               "SKU-" + lineID,
		Title:             "Item " + lineID,
		UnitPrice:         d(price),
		UnitTax:           d(tax),
		EligibleQuantity:  qty,
		Tags:              tags,
	}, qty, reason, "", photos)
	require.NoError(t, err)
	return *item
}

func TestEvaluate(t *testing.T) {
	t.Run("is deterministic for the same snapshot and items", func(t *testing.T) {
		policy := testPolicy()
		policy.Rules = []PolicyRule{
			{ID: "fee", Priority: 1, Reasons: []ReasonCode{ReasonChangedMind}, Effect: RuleEffect{FeePercent: d("15")}},
		}
		items := []ReturnLineItem{lineItem(t, "l1", 2, "19.99", "1.60", ReasonChangedMind, nil, nil)}

		first, err := Evaluate(policy, items, OutcomeRefundOriginal)
		require.NoError(t, err)
		second, err := Evaluate(policy, items, OutcomeRefundOriginal)
		require.NoError(t, err)

		assert.True(t, first.Breakdown.FinalAmount.Equal(second.Breakdown.FinalAmount))
		assert.Equal(t, first.AutoApprove, second.AutoApprove)
	})

	t.Run("sums item and tax contributions", func(t *testing.T) {
		items := []ReturnLineItem{
			lineItem(t, "l1", 2, "10.00", "1.00", ReasonOther, nil, nil),
			lineItem(t, "l2", 1, "5.50", "0.55", ReasonOther, nil, nil),
		}
		eval, err := Evaluate(testPolicy(), items, OutcomeRefundOriginal)
		require.NoError(t, err)

		assert.True(t, eval.Breakdown.ItemTotal.Equal(d("25.50")), "item total %s", eval.Breakdown.ItemTotal)
		assert.True(t, eval.Breakdown.TaxRefund.Equal(d("2.55")))
		assert.True(t, eval.Breakdown.FinalAmount.Equal(d("28.05")))
	})

	t.Run("auto-approves strictly below the ceiling", func(t *testing.T) {
		eval, err := Evaluate(testPolicy(),
			[]ReturnLineItem{lineItem(t, "l1", 1, "49.99", "0.00", ReasonOther, nil, nil)},
			OutcomeRefundOriginal)
		require.NoError(t, err)
		assert.True(t, eval.AutoApprove)
	})

	t.Run("amounts at or above the ceiling stay for manual decision", func(t *testing.T) {
		atCeiling, err := Evaluate(testPolicy(),
			[]ReturnLineItem{lineItem(t, "l1", 1, "50.00", "0.00", ReasonOther, nil, nil)},
			OutcomeRefundOriginal)
		require.NoError(t, err)
		assert.False(t, atCeiling.AutoApprove)

		above, err := Evaluate(testPolicy(),
			[]ReturnLineItem{lineItem(t, "l1", 1, "50.01", "0.00", ReasonOther, nil, nil)},
			OutcomeRefundOriginal)
		require.NoError(t, err)
		assert.False(t, above.AutoApprove)
	})

	t.Run("nil ceiling disables auto-approval", func(t *testing.T) {
		policy := testPolicy()
		policy.AutoApprovalCeiling = nil
		eval, err := Evaluate(policy,
			[]ReturnLineItem{lineItem(t, "l1", 1, "1.00", "0.00", ReasonOther, nil, nil)},
			OutcomeRefundOriginal)
		require.NoError(t, err)
		assert.False(t, eval.AutoApprove)
	})

	t.Run("store credit outcome adds the bonus incentive", func(t *testing.T) {
		eval, err := Evaluate(testPolicy(),
			[]ReturnLineItem{lineItem(t, "l1", 1, "20.00", "2.00", ReasonOther, nil, nil)},
			OutcomeStoreCredit)
		require.NoError(t, err)

		assert.True(t, eval.Breakdown.Incentive.Equal(d("2.00")))
		assert.True(t, eval.Breakdown.FinalAmount.Equal(d("24.00")))
	})

	t.Run("exchange and replacement outcomes pay nothing out", func(t *testing.T) {
		for _, outcome := range []PreferredOutcome{OutcomeExchange, OutcomeReplacement} {
			eval, err := Evaluate(testPolicy(),
				[]ReturnLineItem{lineItem(t, "l1", 1, "20.00", "2.00", ReasonOther, nil, nil)},
				outcome)
			require.NoError(t, err)
			assert.True(t, eval.Breakdown.FinalAmount.IsZero(), "%s", outcome)
			// components survive for the record
			assert.True(t, eval.Breakdown.ItemTotal.Equal(d("20.00")))
		}
	})

	t.Run("applies flat and percentage fees from the first matching rule", func(t *testing.T) {
		policy := testPolicy()
		policy.Rules = []PolicyRule{
			{ID: "later", Priority: 10, Effect: RuleEffect{FeeFlat: d("99.00")}},
			{ID: "first", Priority: 1, Reasons: []ReasonCode{ReasonChangedMind},
				Effect: RuleEffect{FeeFlat: d("2.50"), FeePercent: d("10")}},
		}
		eval, err := Evaluate(policy,
			[]ReturnLineItem{lineItem(t, "l1", 2, "15.00", "0.00", ReasonChangedMind, nil, nil)},
			OutcomeRefundOriginal)
		require.NoError(t, err)

		// 30.00 - 2.50 flat - 3.00 percent
		assert.True(t, eval.Breakdown.ReturnFee.Equal(d("5.50")))
		assert.True(t, eval.Breakdown.FinalAmount.Equal(d("24.50")))
	})

	t.Run("applies discount percentage", func(t *testing.T) {
		policy := testPolicy()
		policy.Rules = []PolicyRule{
			{ID: "haircut", Priority: 1, Effect: RuleEffect{DiscountPercent: d("20")}},
		}
		eval, err := Evaluate(policy,
			[]ReturnLineItem{lineItem(t, "l1", 1, "40.00", "0.00", ReasonOther, nil, nil)},
			OutcomeRefundOriginal)
		require.NoError(t, err)

		assert.True(t, eval.Breakdown.Discount.Equal(d("8.00")))
		assert.True(t, eval.Breakdown.FinalAmount.Equal(d("32.00")))
	})

	t.Run("final amount clamps at zero when fees exceed the refund", func(t *testing.T) {
		policy := testPolicy()
		policy.Rules = []PolicyRule{
			{ID: "heavy", Priority: 1, Effect: RuleEffect{FeeFlat: d("100.00")}},
		}
		eval, err := Evaluate(policy,
			[]ReturnLineItem{lineItem(t, "l1", 1, "10.00", "1.00", ReasonOther, nil, nil)},
			OutcomeRefundOriginal)
		require.NoError(t, err)

		assert.True(t, eval.Breakdown.FinalAmount.IsZero())
	})

	t.Run("blocked items are excluded and reported", func(t *testing.T) {
		policy := testPolicy()
		policy.Rules = []PolicyRule{
			{ID: "final-sale", Priority: 1, ProductTags: []string{"final-sale"}, Effect: RuleEffect{Block: true}},
		}
		eval, err := Evaluate(policy, []ReturnLineItem{
			lineItem(t, "l1", 1, "30.00", "0.00", ReasonOther, []string{"final-sale"}, nil),
			lineItem(t, "l2", 1, "10.00", "0.00", ReasonOther, nil, nil),
		}, OutcomeRefundOriginal)
		require.NoError(t, err)

		assert.Equal(t, []string{"l1"}, eval.Blocked)
		assert.True(t, eval.Breakdown.ItemTotal.Equal(d("10.00")))
		assert.False(t, eval.AutoApprove)
	})

	t.Run("manual review rule suppresses auto-approval", func(t *testing.T) {
		policy := testPolicy()
		policy.Rules = []PolicyRule{
			{ID: "review", Priority: 1, Reasons: []ReasonCode{ReasonNotAsDescribed},
				Effect: RuleEffect{ManualReview: true}},
		}
		eval, err := Evaluate(policy,
			[]ReturnLineItem{lineItem(t, "l1", 1, "5.00", "0.00", ReasonNotAsDescribed, nil, nil)},
			OutcomeRefundOriginal)
		require.NoError(t, err)

		assert.True(t, eval.ManualReview)
		assert.False(t, eval.AutoApprove)
	})

	t.Run("missing evidence suppresses auto-approval and is reported", func(t *testing.T) {
		policy := testPolicy()
		policy.EvidenceReasons = []ReasonCode{ReasonDamagedDefective}

		missing, err := Evaluate(policy,
			[]ReturnLineItem{lineItem(t, "l1", 1, "5.00", "0.00", ReasonDamagedDefective, nil, nil)},
			OutcomeRefundOriginal)
		require.NoError(t, err)
		assert.Equal(t, []string{"l1"}, missing.MissingEvidence)
		assert.False(t, missing.AutoApprove)

		withPhotos, err := Evaluate(policy,
			[]ReturnLineItem{lineItem(t, "l1", 1, "5.00", "0.00", ReasonDamagedDefective, nil,
				[]string{"https://cdn.example.com/p.jpg"})},
			OutcomeRefundOriginal)
		require.NoError(t, err)
		assert.Empty(t, withPhotos.MissingEvidence)
		assert.True(t, withPhotos.AutoApprove)
	})

	t.Run("rejects structurally invalid policy", func(t *testing.T) {
		policy := testPolicy()
		policy.Rules = []PolicyRule{
			{ID: "bad", Priority: 1, Effect: RuleEffect{FeeFlat: d("-1.00")}},
		}
		_, err := Evaluate(policy,
			[]ReturnLineItem{lineItem(t, "l1", 1, "5.00", "0.00", ReasonOther, nil, nil)},
			OutcomeRefundOriginal)
		assert.Error(t, err)
	})
}

func TestPolicySnapshotMatchRule(t *testing.T) {
	t.Run("lowest priority wins with insertion order tiebreak", func(t *testing.T) {
		policy := &PolicySnapshot{
			Currency: "USD",
			Rules: []PolicyRule{
				{ID: "a", Priority: 5},
				{ID: "b", Priority: 1},
				{ID: "c", Priority: 1},
			},
		}
		item := lineItem(t, "l1", 1, "1.00", "0.00", ReasonOther, nil, nil)
		rule := policy.MatchRule(&item)
		require.NotNil(t, rule)
		assert.Equal(t, "b", rule.ID)
	})

	t.Run("no match returns nil", func(t *testing.T) {
		policy := &PolicySnapshot{
			Currency: "USD",
			Rules: []PolicyRule{
				{ID: "a", Priority: 1, Reasons: []ReasonCode{ReasonBetterPrice}},
			},
		}
		item := lineItem(t, "l1", 1, "1.00", "0.00", ReasonOther, nil, nil)
		assert.Nil(t, policy.MatchRule(&item))
	})

	t.Run("tag and reason conditions must both hold", func(t *testing.T) {
		policy := &PolicySnapshot{
			Currency: "USD",
			Rules: []PolicyRule{
				{ID: "both", Priority: 1,
					Reasons:     []ReasonCode{ReasonChangedMind},
					ProductTags: []string{"apparel"}},
			},
		}
		match := lineItem(t, "l1", 1, "1.00", "0.00", ReasonChangedMind, []string{"apparel"}, nil)
		assert.NotNil(t, policy.MatchRule(&match))

		wrongTag := lineItem(t, "l2", 1, "1.00", "0.00", ReasonChangedMind, []string{"shoes"}, nil)
		assert.Nil(t, policy.MatchRule(&wrongTag))

		wrongReason := lineItem(t, "l3", 1, "1.00", "0.00", ReasonOther, []string{"apparel"}, nil)
		assert.Nil(t, policy.MatchRule(&wrongReason))
	})
}
