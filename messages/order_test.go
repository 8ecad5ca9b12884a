package messages

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOrder(t *testing.T) Order {
	t.Helper()
	o, err := NewOrder(
		uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"),
		decimal.RequireFromString("99.95"),
		"PO-1001",
		time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7"),
	)
	require.NoError(t, err)
	return o
}

func TestNewOrder_Validation(t *testing.T) {
	id := uuid.New()
	corr := uuid.New()
	date := time.Now()

	tests := []struct {
		name   string
		id     uuid.UUID
		amount decimal.Decimal
		number string
		date   time.Time
		corr   uuid.UUID
	}{
		{name: "nil order id", id: uuid.Nil, amount: decimal.Zero, number: "PO-1", date: date, corr: corr},
		{name: "negative amount", id: id, amount: decimal.NewFromInt(-1), number: "PO-1", date: date, corr: corr},
		{name: "empty number", id: id, amount: decimal.Zero, number: "", date: date, corr: corr},
		{name: "zero date", id: id, amount: decimal.Zero, number: "PO-1", corr: corr},
		{name: "nil correlation id", id: id, amount: decimal.Zero, number: "PO-1", date: date, corr: uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder(tt.id, tt.amount, tt.number, tt.date, tt.corr)
			require.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestEncode_WireShape(t *testing.T) {
	o := validOrder(t)

	body, headers, err := o.Encode()
	require.NoError(t, err)

	assert.Equal(t, o.CorrelationID.String(), headers[HeaderCorrelationID])
	assert.Equal(t, OrderMessageType, headers[HeaderMessageType])

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Len(t, raw, 4)
	assert.Equal(t, `99.95`, string(raw["orderAmount"]))
	assert.Equal(t, `"PO-1001"`, string(raw["orderNumber"]))
	assert.NotContains(t, raw, "correlationId")
}

func TestDecode_RoundTrip(t *testing.T) {
	o := validOrder(t)
	body, headers, err := o.Encode()
	require.NoError(t, err)

	got, err := Decode(body, headers)
	require.NoError(t, err)
	assert.Equal(t, o.OrderID, got.OrderID)
	assert.True(t, o.OrderAmount.Equal(got.OrderAmount))
	assert.Equal(t, o.OrderNumber, got.OrderNumber)
	assert.True(t, o.OrderDate.Equal(got.OrderDate))
	assert.Equal(t, o.CorrelationID, got.CorrelationID)
}

func TestDecode_Errors(t *testing.T) {
	o := validOrder(t)
	body, headers, err := o.Encode()
	require.NoError(t, err)

	withHeader := func(k, v string) map[string]string {
		h := map[string]string{}
		for hk, hv := range headers {
			h[hk] = hv
		}
		h[k] = v
		return h
	}

	tests := []struct {
		name      string
		body      []byte
		headers   map[string]string
		wantField string
	}{
		{name: "missing correlation id", body: body, headers: withHeader(HeaderCorrelationID, ""), wantField: HeaderCorrelationID},
		{name: "wrong message type", body: body, headers: withHeader(HeaderMessageType, "ordering.messages:Refund"), wantField: HeaderMessageType},
		{name: "not json", body: []byte("not json"), headers: headers},
		{name: "empty order number", body: []byte(`{"orderId":"` + o.OrderID.String() + `","orderAmount":1,"orderNumber":"","orderDate":"2024-03-01T10:00:00Z"}`), headers: headers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.body, tt.headers)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantField, perr.Field)
		})
	}
}
