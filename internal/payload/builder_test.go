package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/types"
)

var (
	fixedNow     = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	orderCreated = time.Date(2026, 3, 10, 14, 55, 0, 0, time.UTC)
)

func newTestBuilder() *Builder {
	return NewBuilder(Params{
		Now:     func() time.Time { return fixedNow },
		Version: "1.2.0",
		SiteURL: "https://shop.example.com",
	})
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func widgetOrder() *models.Order {
	widgetID := int64(501)
	paid := orderCreated.Add(time.Minute)
	return &models.Order{
		ID:        1001,
		Status:    enums.OrderStatusProcessing,
		PaidAt:    &paid,
		Currency:  "BRL",
		Subtotal:  decimal.RequireFromString("100.00"),
		Shipping:  decimal.RequireFromString("99.90"),
		Total:     decimal.RequireFromString("199.90"),
		CreatedAt: orderCreated,
		Billing:   models.BillingIdentity{Email: "Test@Example.com"},
		Items: []models.OrderLineItem{{
			OrderID:   1001,
			ProductID: &widgetID,
			Product: &models.Product{
				ID:         widgetID,
				Name:       "Widget",
				Price:      decimal.RequireFromString("50.00"),
				Categories: types.StringList{"Gadgets"},
			},
			Name:      "Widget",
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("50.00"),
		}},
	}
}

func TestBuildGenericWidgetOrder(t *testing.T) {
	p, err := newTestBuilder().Build(widgetOrder(), enums.PayloadFormatGeneric)
	require.NoError(t, err)
	require.NotNil(t, p.Generic)
	require.Nil(t, p.Meta)

	ev := p.Generic
	assert.True(t, ev.CustomData.Value.Decimal().Equal(decimal.RequireFromString("199.90")))
	assert.Equal(t, []string{"501"}, ev.CustomData.ContentIDs)
	assert.Equal(t, []string{sha("test@example.com")}, ev.UserData.Em)
	assert.Equal(t, "test@example.com", ev.UserData.EmailAddress)
	assert.Equal(t, "1001", ev.CustomData.OrderID)
	assert.Equal(t, 2, ev.CustomData.NumItems)
	assert.Equal(t, "guest", ev.UserData.UserType)
	assert.Equal(t, orderCreated.Unix(), ev.EventTime)
	assert.Equal(t, "order_1001_"+itoa(fixedNow.Unix()), ev.EventID)
	assert.Equal(t, "Data Client", ev.ClientName)
	assert.Equal(t, "processing", ev.Metadata.OrderStatus)
}

func TestBuildGenericEncodesMoneyAsNumbersAndIDsAsStrings(t *testing.T) {
	p, err := newTestBuilder().Build(widgetOrder(), enums.PayloadFormatGeneric)
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, `"value":199.90`)
	assert.Contains(t, body, `"order_id":"1001"`)
	assert.Contains(t, body, `"content_ids":["501"]`)
	assert.Contains(t, body, `"item_price":50.00`)
	assert.NotContains(t, body, `"ph"`)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	custom := decoded["custom_data"].(map[string]any)
	assert.InDelta(t, 199.90, custom["value"].(float64), 0.0001)
}

func TestBuildGenericKeepsItemOrderAndSkipsUnresolvedProducts(t *testing.T) {
	order := widgetOrder()
	order.Items = nil
	const k = 4
	for i := 1; i <= k; i++ {
		id := int64(900 + i)
		order.Items = append(order.Items, models.OrderLineItem{
			ProductID: &id,
			Product:   &models.Product{ID: id, Name: "P" + itoa(int64(i))},
			Quantity:  1,
			UnitPrice: decimal.NewFromInt(10),
		})
	}
	order.Items = append(order.Items, models.OrderLineItem{Name: "deleted product", Quantity: 3})

	p, err := newTestBuilder().Build(order, enums.PayloadFormatGeneric)
	require.NoError(t, err)

	cd := p.Generic.CustomData
	require.Len(t, cd.ContentIDs, k)
	require.Len(t, cd.ContentNames, k)
	require.Len(t, cd.Contents, k)
	assert.Equal(t, []string{"901", "902", "903", "904"}, cd.ContentIDs)
	for i, c := range cd.Contents {
		assert.Equal(t, cd.ContentIDs[i], c.ID)
		assert.Equal(t, c.ID, c.SKU, "sku falls back to product id")
	}
	assert.Equal(t, k+3, cd.NumItems)
}

func TestBuildGenericIdentityRules(t *testing.T) {
	customer := int64(77)
	order := widgetOrder()
	order.CustomerID = &customer
	order.CustomerUsername = "jdoe"
	order.Billing = models.BillingIdentity{
		Email:     " Jane@Example.com ",
		Phone:     "(11) 9876-543",
		FirstName: "Jane",
		LastName:  "Doe",
		City:      "São Paulo",
		State:     "SP",
		Postcode:  "1310-100",
		Country:   "BR",
		Company:   "ACME",
	}

	p, err := newTestBuilder().Build(order, enums.PayloadFormatGeneric)
	require.NoError(t, err)
	ud := p.Generic.UserData

	assert.Empty(t, ud.Ph, "9-digit phone dropped")
	assert.Empty(t, ud.PhoneNumber)
	assert.Empty(t, ud.Zp, "7-digit zip dropped")
	assert.Equal(t, []string{sha("jane")}, ud.Fn)
	assert.Equal(t, "br", ud.CountryCode)
	assert.Equal(t, []string{sha("77")}, ud.ExternalID)
	assert.Equal(t, int64(77), ud.UserID)
	assert.Equal(t, "jdoe", ud.Username)
	assert.Equal(t, "registered", ud.UserType)
	assert.Equal(t, "ACME", ud.BillingCompany)

	order.Billing.Phone = "(11) 98765-4321"
	order.Billing.Postcode = "01310-100"
	p, err = newTestBuilder().Build(order, enums.PayloadFormatGeneric)
	require.NoError(t, err)
	assert.Equal(t, "11987654321", p.Generic.UserData.PhoneNumber)
	assert.Equal(t, "01310100", p.Generic.UserData.ZipCode)
}

func TestBuildGenericJoinsCoupons(t *testing.T) {
	order := widgetOrder()
	order.CouponCodes = types.StringList{"WELCOME10", " ", "FREESHIP"}

	p, err := newTestBuilder().Build(order, enums.PayloadFormatGeneric)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10, FREESHIP", p.Generic.CustomData.Coupon)

	p, err = newTestBuilder().Build(order, enums.PayloadFormatMeta)
	require.NoError(t, err)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "coupon")
}

func TestBuildNormalizesCurrencyCase(t *testing.T) {
	order := widgetOrder()
	order.Currency = " brl "

	p, err := newTestBuilder().Build(order, enums.PayloadFormatGeneric)
	require.NoError(t, err)
	assert.Equal(t, "BRL", p.Generic.CustomData.Currency)

	p, err = newTestBuilder().Build(order, enums.PayloadFormatMeta)
	require.NoError(t, err)
	assert.Equal(t, "BRL", p.Meta.CustomData.Currency)
}

func TestBuildGenericUniqueCategories(t *testing.T) {
	order := widgetOrder()
	second := order.Items[0]
	secondProduct := *second.Product
	secondProduct.ID = 502
	secondProduct.Categories = types.StringList{"Gadgets", "Sale"}
	second.Product = &secondProduct
	order.Items = append(order.Items, second)

	p, err := newTestBuilder().Build(order, enums.PayloadFormatGeneric)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gadgets"}, p.Generic.CustomData.ContentCategory)
}

func TestBrandOfFallbackChain(t *testing.T) {
	assert.Equal(t, "", BrandOf(nil))
	assert.Equal(t, "", BrandOf(&models.Product{}))

	p := &models.Product{
		Attributes: types.StringMap{"marca": "Second"},
		Taxonomies: types.Taxonomies{"product_brand": {"Third"}, "pa_brand": {"Fourth"}},
	}
	assert.Equal(t, "Second", BrandOf(p))

	p.Attributes["pa_marca"] = "First"
	assert.Equal(t, "First", BrandOf(p))

	p.Attributes = nil
	assert.Equal(t, "Third", BrandOf(p))

	p.Taxonomies = types.Taxonomies{"yith_product_brand": {"Last"}, "pa_brand": {"", "Fourth"}}
	assert.Equal(t, "Fourth", BrandOf(p))
}

func TestBuildMetaNormalizesPlaintextOnly(t *testing.T) {
	customer := int64(12)
	order := widgetOrder()
	order.CustomerID = &customer
	order.Billing = models.BillingIdentity{
		Email:     " Maria@Example.com",
		Phone:     "(11) 98765-4321",
		FirstName: "Maria",
		LastName:  "Silva",
		City:      "São Paulo",
		State:     "SP",
		Postcode:  "01310-100",
		Country:   "BR",
	}
	order.Attribution = &types.Attribution{ClientIP: "203.0.113.7", UserAgent: "Mozilla/5.0", FBCLID: "abc123", FBP: "fb.1.1.2"}

	p, err := newTestBuilder().Build(order, enums.PayloadFormatMeta)
	require.NoError(t, err)
	require.NotNil(t, p.Meta)

	ud := p.Meta.UserData
	assert.Equal(t, "maria@example.com", ud.Em)
	assert.Equal(t, "5511987654321", ud.Ph)
	assert.Equal(t, "maria", ud.Fn)
	assert.Equal(t, "saopaulo", ud.Ct)
	assert.Equal(t, "01310", ud.Zp)
	assert.Equal(t, "br", ud.Country)
	assert.Equal(t, "f", ud.Ge)
	assert.Equal(t, "12", ud.ExternalID)
	assert.Equal(t, "fb.1."+itoa(orderCreated.UnixMilli())+".abc123", ud.FBC)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), sha("maria@example.com"))
	assert.Contains(t, string(raw), `"transaction_id":"1001"`)
	assert.Equal(t, "Purchase", p.Meta.EventName)
	assert.Equal(t, []string{"501"}, p.Meta.CustomData.ContentIDs)
}

func TestBuildRejectsMalformedOrders(t *testing.T) {
	b := newTestBuilder()

	_, err := b.Build(nil, enums.PayloadFormatGeneric)
	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))

	order := widgetOrder()
	order.ID = 0
	_, err = b.Build(order, enums.PayloadFormatGeneric)
	require.Error(t, err)

	order = widgetOrder()
	order.CreatedAt = time.Time{}
	_, err = b.Build(order, enums.PayloadFormatGeneric)
	require.Error(t, err)

	_, err = b.Build(widgetOrder(), enums.PayloadFormat("tiktok"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "tiktok"))
}

func itoa(v int64) string {
	return decimal.NewFromInt(v).String()
}

func TestBuildTestEvent(t *testing.T) {
	event := newTestBuilder().BuildTest()
	assert.Equal(t, "test_event", event.EventName)
	assert.Equal(t, "Data Client", event.ClientName)
	assert.Equal(t, fixedNow.Unix(), event.EventTime)
	assert.Equal(t, "test_"+itoa(fixedNow.Unix()), event.EventID)
	assert.True(t, event.Metadata.Test)
	assert.Equal(t, "sgtm-webhook", event.Metadata.Source)
	assert.Equal(t, "1.2.0", event.Metadata.Version)
}

func TestMoneyAlwaysEncodesTwoDecimals(t *testing.T) {
	cases := map[string]string{
		"10":     "10.00",
		"199.9":  "199.90",
		"1.005":  "1.01",
		"0":      "0.00",
		"-2.499": "-2.50",
	}
	for in, want := range cases {
		raw, err := json.Marshal(Money(decimal.RequireFromString(in)))
		require.NoError(t, err)
		assert.Equal(t, want, string(raw), in)
	}
}
