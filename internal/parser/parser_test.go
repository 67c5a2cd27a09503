package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	res   *model.ExtractedFields
	err   error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, _ model.ExtractionRequest) (*model.ExtractedFields, error) {
	s.calls++
	return s.res, s.err
}

func testAccount() model.MailAccount {
	return model.MailAccount{ID: "acc-1", UserID: testutil.DefaultUserID, Timezone: model.DefaultTimezone}
}

func rawMessage(sender, subject, body string) model.RawMessage {
	return model.RawMessage{
		ID:         1,
		AccountID:  "acc-1",
		Sender:     sender,
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC),
	}
}

func costaRica(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(model.DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func TestParse_Templates(t *testing.T) {
	loc := costaRica(t)

	tests := []struct {
		name      string
		msg       model.RawMessage
		amount    string
		currency  string
		merchant  string
		card      string
		reference string
		template  string
		date      time.Time
	}{
		{
			name:     "bac text alert",
			msg:      rawMessage(testutil.BankSender, "Compra", testutil.BACTextAlert),
			amount:   "15000",
			currency: "CRC",
			merchant: "AUTOMERCADO",
			card:     "4321",
			template: "bac",
			date:     time.Date(2024, 3, 12, 0, 0, 0, 0, loc),
		},
		{
			name:      "bac html table",
			msg:       rawMessage(testutil.BankSender, "Notificación de transacción", testutil.BACHTMLAlert),
			amount:    "4250",
			currency:  "CRC",
			merchant:  "UBER TRIP",
			card:      "1234",
			reference: "407212345678",
			template:  "bac",
			date:      time.Date(2024, 3, 12, 18, 45, 0, 0, loc),
		},
		{
			name:      "promerica card alert",
			msg:       rawMessage("alertas@promerica.fi.cr", "Uso de tarjeta", testutil.PromericaAlert),
			amount:    "15.99",
			currency:  "USD",
			merchant:  "NETFLIX.COM",
			card:      "9876",
			reference: "88812",
			template:  "promerica",
			date:      time.Date(2024, 3, 5, 21, 10, 0, 0, loc),
		},
		{
			name:     "bac card phrase before merchant",
			msg:      rawMessage(testutil.BankSender, "Compra", "BAC: su tarjeta terminada en 4321 fue utilizada en AUTOMERCADO por CRC 15,000.00 el 12/03/2024"),
			amount:   "15000",
			currency: "CRC",
			merchant: "AUTOMERCADO",
			card:     "4321",
			template: "bac",
			date:     time.Date(2024, 3, 12, 0, 0, 0, 0, loc),
		},
		{
			name:     "promerica card phrase before merchant",
			msg:      rawMessage("alertas@promerica.fi.cr", "Uso de tarjeta", "Promerica le informa que su tarjeta terminada en 9876 fue utilizada en NETFLIX.COM por US$ 15.99 el 05/03/2024 21:10"),
			amount:   "15.99",
			currency: "USD",
			merchant: "NETFLIX.COM",
			card:     "9876",
			template: "promerica",
			date:     time.Date(2024, 3, 5, 21, 10, 0, 0, loc),
		},
	}

	p := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := p.Parse(context.Background(), testAccount(), tt.msg)
			require.NoError(t, err)

			assert.True(t, decimal.RequireFromString(tt.amount).Equal(c.Amount), "amount %s", c.Amount)
			assert.Equal(t, tt.currency, c.Currency)
			assert.Equal(t, tt.merchant, c.Merchant)
			assert.Equal(t, tt.card, c.CardLast4)
			assert.Equal(t, tt.reference, c.Reference)
			assert.Equal(t, tt.template, c.Template)
			assert.Equal(t, model.ExtractionRule, c.Method)
			assert.True(t, tt.date.Equal(c.Date), "date %s", c.Date)
			assert.True(t, c.DateFound)
		})
	}
}

func TestParse_EndToEndBody(t *testing.T) {
	c, err := New(nil, nil).Parse(context.Background(), testAccount(), rawMessage("", "", testutil.BACTextAlert))
	require.NoError(t, err)

	assert.Equal(t, "15000.00", c.Amount.StringFixed(2))
	assert.Equal(t, "CRC", c.Currency)
	assert.Equal(t, "AUTOMERCADO", c.Merchant)
	assert.Equal(t, "4321", c.CardLast4)
	assert.Equal(t, "2024-03-12", c.Date.Format(time.DateOnly))
	assert.InDelta(t, 0.75, c.Confidence, 0.001, "only the reference is missing")
	assert.GreaterOrEqual(t, c.Confidence, model.ReviewThreshold)
}

func TestParse_NotAnAlert(t *testing.T) {
	p := New(nil, nil)

	tests := []struct {
		name string
		msg  model.RawMessage
	}{
		{name: "bank newsletter", msg: rawMessage(testutil.BankSender, "Novedades", testutil.NewsletterBody)},
		{name: "unknown sender", msg: rawMessage("friend@example.com", "Compra", "Te compro el libro por 5000")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(context.Background(), testAccount(), tt.msg)
			assert.ErrorIs(t, err, common.ErrTemplateUnrecognized)
		})
	}
}

const driftedAlert = "BAC Credomatic: se realizó una compra con su tarjeta. Detalle adjunto en formato nuevo."

func TestParse_Fallback(t *testing.T) {
	msg := rawMessage(testutil.BankSender, "Compra", driftedAlert)

	t.Run("fills missing fields with capped confidence", func(t *testing.T) {
		stub := &stubExtractor{res: &model.ExtractedFields{
			Amount:     "₡12.500,00",
			Merchant:   "PANADERIA LA JOYA",
			CardLast4:  "xx5555",
			Date:       "2024-03-18",
			Confidence: 0.9,
		}}
		c, err := New(stub, nil).Parse(context.Background(), testAccount(), msg)
		require.NoError(t, err)

		assert.Equal(t, 1, stub.calls)
		assert.Equal(t, model.ExtractionInference, c.Method)
		assert.Equal(t, "12500.00", c.Amount.StringFixed(2))
		assert.Equal(t, "CRC", c.Currency)
		assert.Equal(t, "PANADERIA LA JOYA", c.Merchant)
		assert.Equal(t, "5555", c.CardLast4)
		assert.LessOrEqual(t, c.Confidence, 0.6)
	})

	t.Run("budget exhausted reports missing fields", func(t *testing.T) {
		stub := &stubExtractor{err: common.ErrBudgetExhausted}
		_, err := New(stub, nil).Parse(context.Background(), testAccount(), msg)

		var incomplete *common.ExtractionIncompleteError
		require.ErrorAs(t, err, &incomplete)
		assert.Equal(t, "bac", incomplete.Template)
		assert.Contains(t, incomplete.Missing, "amount")
		assert.ErrorIs(t, err, common.ErrBudgetExhausted)
	})

	t.Run("incomplete answer is still incomplete", func(t *testing.T) {
		stub := &stubExtractor{res: &model.ExtractedFields{Amount: "100", Confidence: 0.8}}
		_, err := New(stub, nil).Parse(context.Background(), testAccount(), msg)

		var incomplete *common.ExtractionIncompleteError
		require.ErrorAs(t, err, &incomplete)
		assert.NotContains(t, incomplete.Missing, "amount")
		assert.Contains(t, incomplete.Missing, "merchant")
	})

	t.Run("transient error is returned for retry", func(t *testing.T) {
		stub := &stubExtractor{err: common.NewTransientProviderError("openai", "extract", errors.New("timeout"))}
		_, err := New(stub, nil).Parse(context.Background(), testAccount(), msg)

		require.Error(t, err)
		assert.True(t, common.IsTransient(err))
		var incomplete *common.ExtractionIncompleteError
		assert.False(t, errors.As(err, &incomplete))
	})

	t.Run("no extractor", func(t *testing.T) {
		_, err := New(nil, nil).Parse(context.Background(), testAccount(), msg)
		assert.ErrorIs(t, err, common.ErrInferenceDisabled)
	})
}

func TestParse_MissingDateUsesReceipt(t *testing.T) {
	body := "BAC: compra por CRC 2,000.00 en FARMACIA FISCHEL tarjeta terminada en 4321. Referencia 99881"
	msg := rawMessage(testutil.BankSender, "Compra", body)

	c, err := New(nil, nil).Parse(context.Background(), testAccount(), msg)
	require.NoError(t, err)
	assert.False(t, c.DateFound)
	assert.True(t, msg.ReceivedAt.Equal(c.Date))
	assert.Equal(t, "FARMACIA FISCHEL", c.Merchant)
}

func TestParser_Register(t *testing.T) {
	p := New(nil, nil)
	p.Register(Template{
		Name:            "scotiabank",
		Senders:         []string{"scotiabank"},
		DefaultCurrency: "CRC",
		Mandatory:       []Field{FieldAmount, FieldMerchant},
	})
	assert.Equal(t, []string{"bac", "promerica", "scotiabank"}, p.Templates())

	c, err := p.Parse(context.Background(), testAccount(),
		rawMessage("avisos@scotiabank.cr", "Aviso", "Pago en SODA TAPIA por 3500"))
	require.NoError(t, err)
	assert.Equal(t, "scotiabank", c.Template)
	assert.Equal(t, "SODA TAPIA", c.Merchant)
	assert.Equal(t, "CRC", c.Currency)
	assert.Equal(t, "3500", c.Amount.String())
}
