package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "1.650.000 ₫", FormatPrice(decimal.NewFromInt(1650000)))
	assert.Equal(t, "900 ₫", FormatPrice(decimal.NewFromInt(900)))
	assert.Equal(t, "0 ₫", FormatPrice(decimal.Zero))
	assert.Equal(t, "-15.000 ₫", FormatPrice(decimal.NewFromInt(-15000)))
}

func TestNotifyPaymentReturn(t *testing.T) {
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botbot-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramService("bot-token", "-100").WithAPIBase(srv.URL)
	err := tg.NotifyPaymentReturn(context.Background(), PaymentAlert{
		OrderRef:     "12",
		ResponseCode: "00",
		Amount:       decimal.NewFromInt(1650000),
		Verified:     false,
		Message:      "invalid signature",
	})

	require.NoError(t, err)
	assert.Equal(t, "-100", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, "Payment return rejected")
	assert.Contains(t, got.Text, "1.650.000 ₫")
}

func TestTelegramDisabledIsNoop(t *testing.T) {
	tg := NewTelegramService("", "")
	assert.False(t, tg.Enabled())
	assert.NoError(t, tg.SendToAdmin(context.Background(), "hello"))
}
