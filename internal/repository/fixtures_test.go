package repository_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/ordermgmt/ordercore/internal/domain"
)

func fakeAddress() *domain.Address {
	return &domain.Address{
		Street:       gofakeit.Street(),
		Number:       gofakeit.DigitN(3),
		Complement:   gofakeit.Word(),
		Neighborhood: gofakeit.City(),
		City:         gofakeit.City(),
		State:        gofakeit.StateAbr(),
		ZipCode:      gofakeit.Zip(),
	}
}

func fakeCustomer() domain.Customer {
	return domain.Customer{
		Name: gofakeit.Name(),
		// uuid suffix keeps emails unique across the whole suite
		Email:   fmt.Sprintf("%s.%s@example.com", gofakeit.Username(), uuid.NewString()[:8]),
		Address: fakeAddress(),
	}
}

func fakeProduct(stock int) domain.Product {
	return domain.Product{
		Name:          gofakeit.ProductName(),
		SKU:           strings.ToUpper(uuid.NewString()[:13]),
		Price:         domain.NewMoney(decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2), domain.DefaultCurrency),
		StockQuantity: stock,
		Active:        true,
	}
}

func fakeOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:14])
}

func buildOrder(t *testing.T, customerID uuid.UUID, products ...domain.Product) domain.Order {
	t.Helper()

	order := domain.NewOrder(fakeOrderNumber(), customerID, domain.DefaultCurrency)
	order.ShippingAddress = fakeAddress()
	order.Notes = gofakeit.Sentence(5)

	for _, product := range products {
		item, err := domain.NewOrderItem(product, gofakeit.Number(1, 3))
		require.NoError(t, err)

		order, err = order.WithItem(item)
		require.NoError(t, err)
	}

	return order
}

func assertOrder(t *testing.T, expected, actual domain.Order) {
	t.Helper()

	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.Order{}, "ID", "CreatedAt", "UpdatedAt"),
		currencyComparer(),
		decimalComparer(),
		cmpopts.EquateEmpty(),
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)

	assert.False(t, actual.CreatedAt.IsZero())
	assert.False(t, actual.UpdatedAt.IsZero())
	assert.NotEqual(t, uuid.Nil, actual.ID)
}

func assertPayment(t *testing.T, expected, actual domain.Payment) {
	t.Helper()

	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.Payment{}, "ID", "CreatedAt", "UpdatedAt", "PaidAt", "RefundedAt"),
		currencyComparer(),
		decimalComparer(),
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)

	assert.NotEqual(t, uuid.Nil, actual.ID)
}

func currencyComparer() cmp.Option {
	return cmp.Comparer(func(x, y currency.Unit) bool {
		return x.String() == y.String()
	})
}

// Postgres returns numeric(10,2) with a fixed exponent, so compare by
// value rather than representation.
func decimalComparer() cmp.Option {
	return cmp.Comparer(func(x, y decimal.Decimal) bool {
		return x.Equal(y)
	})
}
