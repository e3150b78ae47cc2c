package relist

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noakmilo/qventory-relist/internal/models"
)

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestApplyPriceDecay(t *testing.T) {
	type args struct {
		current *decimal.Decimal
		cfg     *models.AutoRelistConfig
	}
	tests := []struct {
		name string
		args args
		want *decimal.Decimal
	}{
		{
			name: "fixed decrease",
			args: args{
				current: decPtr("100"),
				cfg: &models.AutoRelistConfig{
					EnablePriceDecrease: true,
					PriceDecreaseType:   models.PriceDecreaseFixed,
					PriceDecreaseAmount: decPtr("10"),
				},
			},
			want: decPtr("90.00"),
		},
		{
			name: "percentage decrease",
			args: args{
				current: decPtr("100"),
				cfg: &models.AutoRelistConfig{
					EnablePriceDecrease: true,
					PriceDecreaseType:   models.PriceDecreasePercentage,
					PriceDecreaseAmount: decPtr("10"),
				},
			},
			want: decPtr("90.00"),
		},
		{
			name: "clamped to min price",
			args: args{
				current: decPtr("50"),
				cfg: &models.AutoRelistConfig{
					EnablePriceDecrease: true,
					PriceDecreaseType:   models.PriceDecreaseFixed,
					PriceDecreaseAmount: decPtr("10"),
					MinPrice:            decPtr("45"),
				},
			},
			want: decPtr("45.00"),
		},
		{
			name: "never below zero without min price",
			args: args{
				current: decPtr("5"),
				cfg: &models.AutoRelistConfig{
					EnablePriceDecrease: true,
					PriceDecreaseType:   models.PriceDecreaseFixed,
					PriceDecreaseAmount: decPtr("10"),
				},
			},
			want: decPtr("0.00"),
		},
		{
			name: "percentage rounds to two decimals",
			args: args{
				current: decPtr("33.33"),
				cfg: &models.AutoRelistConfig{
					EnablePriceDecrease: true,
					PriceDecreaseType:   models.PriceDecreasePercentage,
					PriceDecreaseAmount: decPtr("7"),
				},
			},
			want: decPtr("31.00"),
		},
		{
			name: "disabled",
			args: args{
				current: decPtr("100"),
				cfg: &models.AutoRelistConfig{
					EnablePriceDecrease: false,
					PriceDecreaseType:   models.PriceDecreaseFixed,
					PriceDecreaseAmount: decPtr("10"),
				},
			},
			want: nil,
		},
		{
			name: "missing current price",
			args: args{
				current: nil,
				cfg: &models.AutoRelistConfig{
					EnablePriceDecrease: true,
					PriceDecreaseType:   models.PriceDecreaseFixed,
					PriceDecreaseAmount: decPtr("10"),
				},
			},
			want: nil,
		},
		{
			name: "missing amount",
			args: args{
				current: decPtr("100"),
				cfg: &models.AutoRelistConfig{
					EnablePriceDecrease: true,
					PriceDecreaseType:   models.PriceDecreaseFixed,
				},
			},
			want: nil,
		},
		{
			name: "nil config",
			args: args{
				current: decPtr("100"),
				cfg:     nil,
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyPriceDecay(tt.args.current, tt.args.cfg)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ApplyPriceDecay() = %v, want %v", got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("ApplyPriceDecay() = %s, want %s", got, tt.want)
			}
		})
	}
}
