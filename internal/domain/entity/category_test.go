package entity

import "testing"

func TestAccumulationPolicyApply(t *testing.T) {
	tests := []struct {
		name       string
		policy     AccumulationPolicy
		cumulative float64
		chunk      float64
		want       float64
	}{
		{"sum adds", AccumulateSum, 10.0, 2.5, 12.5},
		{"sum adds zero", AccumulateSum, 10.0, 0.0, 10.0},
		{"max keeps higher running total", AccumulateMax, 10.0, 7.0, 10.0},
		{"max takes higher chunk", AccumulateMax, 10.0, 15.0, 15.0},
		{"replace overwrites", AccumulateReplace, 10.0, 7.0, 7.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Apply(tt.cumulative, tt.chunk)
			if got != tt.want {
				t.Errorf("Apply(%f, %f) = %f, want %f", tt.cumulative, tt.chunk, got, tt.want)
			}
		})
	}
}

func TestNewCategoryValidation(t *testing.T) {
	if _, err := NewCategory("mint_incentives", "telos", "lqty_amount", "usd_issued", AccumulateMax, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		fields [4]string
		policy AccumulationPolicy
	}{
		{"empty name", [4]string{"", "telos", "a", "b"}, AccumulateSum},
		{"empty coin", [4]string{"x", "", "a", "b"}, AccumulateSum},
		{"empty raw column", [4]string{"x", "telos", "", "b"}, AccumulateSum},
		{"empty usd column", [4]string{"x", "telos", "a", ""}, AccumulateSum},
		{"unknown policy", [4]string{"x", "telos", "a", "b"}, AccumulationPolicy("avg")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCategory(tt.fields[0], tt.fields[1], tt.fields[2], tt.fields[3], tt.policy, false)
			if err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
