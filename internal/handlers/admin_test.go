package handlers

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/utils"
)

func TestValidateDiscount(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(0, 0, -1)
	negative := -1

	tests := []struct {
		name      string
		code      models.DiscountCode
		wantField string
	}{
		{
			name: "fixed",
			code: models.DiscountCode{Code: " save150 ", DiscountType: models.DiscountFixed, Value: decimal.NewFromInt(150000)},
		},
		{
			name:      "missing code",
			code:      models.DiscountCode{DiscountType: models.DiscountFixed, Value: decimal.NewFromInt(1)},
			wantField: "code",
		},
		{
			name:      "percentage over 100",
			code:      models.DiscountCode{Code: "BIG", DiscountType: models.DiscountPercentage, Value: decimal.NewFromInt(120)},
			wantField: "value",
		},
		{
			name:      "unknown type",
			code:      models.DiscountCode{Code: "X", DiscountType: "bogo", Value: decimal.NewFromInt(1)},
			wantField: "discountType",
		},
		{
			name:      "zero value",
			code:      models.DiscountCode{Code: "X", DiscountType: models.DiscountFixed},
			wantField: "value",
		},
		{
			name:      "ends before start",
			code:      models.DiscountCode{Code: "X", DiscountType: models.DiscountFixed, Value: decimal.NewFromInt(1), StartDate: &start, EndDate: &before},
			wantField: "endDate",
		},
		{
			name:      "negative max uses",
			code:      models.DiscountCode{Code: "X", DiscountType: models.DiscountFixed, Value: decimal.NewFromInt(1), MaxUses: &negative},
			wantField: "maxUses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDiscount(&tt.code)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var verr *utils.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestValidateDiscountNormalizesCode(t *testing.T) {
	code := models.DiscountCode{Code: " save150 ", DiscountType: models.DiscountFixed, Value: decimal.NewFromInt(150000)}
	require.NoError(t, validateDiscount(&code))
	assert.Equal(t, "SAVE150", code.Code)
}
