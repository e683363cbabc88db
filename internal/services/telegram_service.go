package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/pianostore/internal/models"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramService sends operational alerts to the shop's admin chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	http        *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     defaultTelegramAPI,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase points the service at another Bot API host.
func (s *TelegramService) WithAPIBase(base string) *TelegramService {
	s.apiBase = strings.TrimRight(base, "/")
	return s
}

// Enabled reports whether alerts can be delivered.
func (s *TelegramService) Enabled() bool {
	return s != nil && s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if !s.Enabled() {
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice renders an amount with dot thousand separators, e.g. 1.650.000 ₫.
func FormatPrice(amount decimal.Decimal) string {
	str := amount.Round(0).Abs().StringFixed(0)

	var result strings.Builder
	if amount.Round(0).IsNegative() {
		result.WriteString("-")
	}
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(".")
		}
		result.WriteRune(digit)
	}

	return result.String() + " ₫"
}

// NotifyNewOrder announces a checkout submission.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order models.Order) error {
	if !s.Enabled() {
		return nil
	}

	var items strings.Builder
	for i, item := range order.Items {
		price := item.UnitPrice
		if item.SalePrice != nil {
			price = *item.SalePrice
		}
		fmt.Fprintf(&items, "%d. <b>%s</b>\n   %d x %s\n", i+1, html.EscapeString(item.ProductName), item.Quantity, FormatPrice(price))
	}

	method := "Cash on delivery"
	if order.PaymentMethod == models.PaymentVNPay {
		method = "VNPay"
	}

	message := fmt.Sprintf(`<b>New order #%d</b>
<b>Items:</b>
%s
<b>Total:</b> %s
<b>Payment:</b> %s`,
		order.ID,
		items.String(),
		FormatPrice(order.OrderTotal),
		method,
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// PaymentAlert describes a gateway return worth an operator's attention.
type PaymentAlert struct {
	OrderRef      string
	TransactionNo string
	ResponseCode  string
	Amount        decimal.Decimal
	Verified      bool
	Success       bool
	Message       string
}

// NotifyPaymentReturn reports a confirmed payment, or a return whose raw
// gateway fields claim success while verification failed.
func (s *TelegramService) NotifyPaymentReturn(ctx context.Context, alert PaymentAlert) error {
	if !s.Enabled() {
		return nil
	}

	title := "<b>Payment received</b>"
	if !alert.Verified || !alert.Success {
		title = "<b>Payment return rejected</b>"
	}

	message := fmt.Sprintf(`%s
<b>Order:</b> %s
<b>Transaction:</b> %s
<b>Gateway code:</b> %s
<b>Amount:</b> %s
<b>Verified:</b> %t
<i>%s</i>`,
		title,
		html.EscapeString(alert.OrderRef),
		html.EscapeString(alert.TransactionNo),
		html.EscapeString(alert.ResponseCode),
		FormatPrice(alert.Amount),
		alert.Verified,
		html.EscapeString(alert.Message),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}
