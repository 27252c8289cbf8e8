package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/shopspring/decimal"
)

func newDefaultEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := engine.LoadRules(DefaultRiskRules()); err != nil {
		t.Fatalf("failed to load default rules: %v", err)
	}
	return engine
}

func record(id string) domain.Record {
	return domain.Record{
		TransactionID:        id,
		TransactionAmount:    decimal.NewFromInt(120),
		MerchantCountryCode:  "US",
		AcqCountry:           "US",
		MerchantCategoryCode: "online_retail",
		CardCVV:              "123",
		EnteredCVV:           "123",
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(0)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
	if engine.MaxScore() != 0 {
		t.Errorf("expected max score 0, got %d", engine.MaxScore())
	}
}

func TestDefaultRulesMaxScore(t *testing.T) {
	engine := newDefaultEngine(t)
	defer engine.Close()

	if engine.RulesCount() != 4 {
		t.Fatalf("expected 4 rules, got %d", engine.RulesCount())
	}
	if engine.MaxScore() != 8 {
		t.Errorf("expected max score 8, got %d", engine.MaxScore())
	}
}

func TestScoreWeights(t *testing.T) {
	engine := newDefaultEngine(t)
	defer engine.Close()

	tests := []struct {
		name string
		set  domain.IndicatorSet
		want int
	}{
		{"None", domain.IndicatorSet{}, 0},
		{"CardNotPresentOnly", domain.IndicatorSet{CardNotPresent: true}, 1},
		{"CVV", domain.IndicatorSet{CVVMismatch: true, CardNotPresent: true}, 4},
		{"ExpDate", domain.IndicatorSet{ExpDateMismatch: true, CardNotPresent: true}, 3},
		{"Geo", domain.IndicatorSet{GeoMismatch: true, CardNotPresent: true}, 3},
		{"CVVAndGeo", domain.IndicatorSet{CVVMismatch: true, GeoMismatch: true, CardNotPresent: true}, 6},
		{"All", domain.IndicatorSet{CVVMismatch: true, ExpDateMismatch: true, GeoMismatch: true, CardNotPresent: true}, 8},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Score(ctx, record("tx-1"), tt.set)
			if err != nil {
				t.Fatalf("score failed: %v", err)
			}
			if res.Score != tt.want {
				t.Errorf("expected score %d, got %d", tt.want, res.Score)
			}
			if len(res.Triggered) > 4 {
				t.Errorf("unexpected triggered rules: %v", res.Triggered)
			}
		})
	}
}

func TestScoreCanceledContext(t *testing.T) {
	engine := newDefaultEngine(t)
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Score(ctx, record("tx-1"), domain.IndicatorSet{CVVMismatch: true})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScoreIsMonotone(t *testing.T) {
	engine := newDefaultEngine(t)
	defer engine.Close()

	weights := map[string]int{
		domain.RuleCVVMismatch:     3,
		domain.RuleExpDateMismatch: 2,
		domain.RuleGeoMismatch:     2,
		domain.RuleCardNotPresent:  1,
	}
	set := func(mask int) domain.IndicatorSet {
		return domain.IndicatorSet{
			CVVMismatch:     mask&1 != 0,
			ExpDateMismatch: mask&2 != 0,
			GeoMismatch:     mask&4 != 0,
			CardNotPresent:  mask&8 != 0,
		}
	}
	flip := []string{domain.RuleCVVMismatch, domain.RuleExpDateMismatch, domain.RuleGeoMismatch, domain.RuleCardNotPresent}

	ctx := context.Background()
	for mask := 0; mask < 16; mask++ {
		base, err := engine.Score(ctx, record("tx"), set(mask))
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}
		for bit, id := range flip {
			if mask&(1<<bit) != 0 {
				continue
			}
			raised, err := engine.Score(ctx, record("tx"), set(mask|1<<bit))
			if err != nil {
				t.Fatalf("score failed: %v", err)
			}
			if raised.Score-base.Score != weights[id] {
				t.Errorf("mask %04b: flipping %s changed score by %d, expected %d",
					mask, id, raised.Score-base.Score, weights[id])
			}
		}
	}
}

func TestFlaggedScoreRange(t *testing.T) {
	engine := newDefaultEngine(t)
	defer engine.Close()

	ctx := context.Background()
	for mask := 0; mask < 8; mask++ {
		s := domain.IndicatorSet{
			CVVMismatch:     mask&1 != 0,
			ExpDateMismatch: mask&2 != 0,
			GeoMismatch:     mask&4 != 0,
			CardNotPresent:  true,
		}
		s.PotentialIdentityTheft = s.CVVMismatch || s.ExpDateMismatch || s.GeoMismatch
		if !s.PotentialIdentityTheft {
			continue
		}
		res, err := engine.Score(ctx, record("tx"), s)
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}
		if res.Score < 1 || res.Score > 8 {
			t.Errorf("mask %03b: score %d outside [1, 8]", mask, res.Score)
		}
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(2)
	defer engine.Close()

	tests := []struct {
		name string
		rule *domain.RiskRule
	}{
		{"BadSyntax", &domain.RiskRule{ID: "bad", Expression: "this is not valid CEL !!!", Enabled: true}},
		{"NonBool", &domain.RiskRule{ID: "num", Expression: "amount * 2.0", Weight: 1, Enabled: true}},
		{"UnknownVariable", &domain.RiskRule{ID: "var", Expression: "velocity > 3", Weight: 1, Enabled: true}},
		{"NegativeWeight", &domain.RiskRule{ID: "neg", Expression: "cvv_mismatch", Weight: -1, Enabled: true}},
		{"MissingID", &domain.RiskRule{Expression: "cvv_mismatch", Weight: 1, Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.LoadRule(tt.rule)
			if !errors.Is(err, ErrInvalidRule) {
				t.Errorf("expected ErrInvalidRule, got %v", err)
			}
		})
	}

	if engine.RulesCount() != 0 {
		t.Errorf("expected no rules loaded, got %d", engine.RulesCount())
	}
}

func TestLoadRuleReplacesSameID(t *testing.T) {
	engine := newDefaultEngine(t)
	defer engine.Close()

	err := engine.LoadRule(&domain.RiskRule{
		ID:         domain.RuleCVVMismatch,
		Expression: "cvv_mismatch",
		Weight:     5,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 4 {
		t.Errorf("expected 4 rules, got %d", engine.RulesCount())
	}
	if engine.MaxScore() != 10 {
		t.Errorf("expected max score 10, got %d", engine.MaxScore())
	}
}

func TestCustomRuleUsesRecordFields(t *testing.T) {
	engine, _ := NewEngine(2)
	defer engine.Close()

	err := engine.LoadRule(&domain.RiskRule{
		ID:         "large_foreign",
		Expression: `amount > 100.0 && acq_country != merchant_country`,
		Weight:     4,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	rec := record("tx-1")
	res, _ := engine.Score(context.Background(), rec, domain.IndicatorSet{})
	if res.Score != 0 {
		t.Errorf("expected score 0 for domestic record, got %d", res.Score)
	}

	rec.AcqCountry = "MX"
	res, _ = engine.Score(context.Background(), rec, domain.IndicatorSet{})
	if res.Score != 4 {
		t.Errorf("expected score 4 for foreign record, got %d", res.Score)
	}
	if len(res.Triggered) != 1 || res.Triggered[0] != "large_foreign" {
		t.Errorf("unexpected triggered rules: %v", res.Triggered)
	}
}

func TestReloadRulesKeepsPreviousOnError(t *testing.T) {
	engine := newDefaultEngine(t)
	defer engine.Close()

	err := engine.ReloadRules([]*domain.RiskRule{
		{ID: "ok", Expression: "card_not_present", Weight: 1, Enabled: true},
		{ID: "broken", Expression: "card_not_present +", Weight: 1, Enabled: true},
	})
	if err == nil {
		t.Fatal("expected reload error")
	}
	if engine.RulesCount() != 4 || engine.MaxScore() != 8 {
		t.Errorf("previous rules not kept: count=%d max=%d", engine.RulesCount(), engine.MaxScore())
	}

	err = engine.ReloadRules([]*domain.RiskRule{
		{ID: "dup", Expression: "cvv_mismatch", Weight: 1, Enabled: true},
		{ID: "dup", Expression: "geo_mismatch", Weight: 1, Enabled: true},
	})
	if !errors.Is(err, ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule for duplicate ids, got %v", err)
	}

	err = engine.ReloadRules([]*domain.RiskRule{
		{ID: "only", Expression: "card_not_present", Weight: 7, Enabled: true},
		{ID: "off", Expression: "cvv_mismatch", Weight: 1, Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if engine.RulesCount() != 1 || engine.MaxScore() != 7 {
		t.Errorf("unexpected rules after reload: count=%d max=%d", engine.RulesCount(), engine.MaxScore())
	}
}

func TestScoreAllAligned(t *testing.T) {
	engine := newDefaultEngine(t)
	defer engine.Close()

	const n = 250
	records := make([]domain.Record, n)
	sets := make([]domain.IndicatorSet, n)
	for i := range records {
		records[i] = record("tx")
		sets[i] = domain.IndicatorSet{
			CVVMismatch:    i%2 == 0,
			GeoMismatch:    i%3 == 0,
			CardNotPresent: i%5 != 0,
		}
	}

	results, err := engine.ScoreAll(context.Background(), records, sets)
	if err != nil {
		t.Fatalf("score all failed: %v", err)
	}
	if len(results) != n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}

	for i, res := range results {
		want := 0
		if sets[i].CVVMismatch {
			want += 3
		}
		if sets[i].GeoMismatch {
			want += 2
		}
		if sets[i].CardNotPresent {
			want++
		}
		// expiration flag is false in every set, so its rule never fires
		if res.Score != want {
			t.Errorf("row %d: expected %d, got %d", i, want, res.Score)
		}
	}
}

func TestScoreAllErrors(t *testing.T) {
	engine := newDefaultEngine(t)
	defer engine.Close()

	_, err := engine.ScoreAll(context.Background(), make([]domain.Record, 2), make([]domain.IndicatorSet, 1))
	if err == nil {
		t.Error("expected error for misaligned input")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.ScoreAll(ctx, make([]domain.Record, 10), make([]domain.IndicatorSet, 10))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	results, err := engine.ScoreAll(context.Background(), nil, nil)
	if err != nil || len(results) != 0 {
		t.Errorf("expected empty result for empty input, got %v, %v", results, err)
	}
}
