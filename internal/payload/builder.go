package payload

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/sgtm-webhook/internal/pii"
	"github.com/angelmondragon/sgtm-webhook/pkg/db/models"
	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
)

const (
	genericClientName = "Data Client"
	genericEventName  = "purchase"
	metaEventName     = "Purchase"
	actionSource      = "website"
	contentType       = "product"
	defaultSource     = "sgtm-webhook"
	userTypeGuest     = "guest"
	userTypeMember    = "registered"
)

// brandAttributes and brandTaxonomies are checked in order; the first
// non-empty value wins.
var (
	brandAttributes = []string{"pa_marca", "marca"}
	brandTaxonomies = []string{"product_brand", "pa_brand", "yith_product_brand"}
)

// Params configures a Builder.
type Params struct {
	// Now defaults to time.Now. event_id depends on it.
	Now     func() time.Time
	Source  string
	Version string
	SiteURL string
}

// Builder converts orders into payloads. It performs no I/O.
type Builder struct {
	now     func() time.Time
	source  string
	version string
	siteURL string
}

func NewBuilder(p Params) *Builder {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	source := strings.TrimSpace(p.Source)
	if source == "" {
		source = defaultSource
	}
	return &Builder{
		now:     now,
		source:  source,
		version: p.Version,
		siteURL: p.SiteURL,
	}
}

// Build renders order in the requested format.
func (b *Builder) Build(order *models.Order, format enums.PayloadFormat) (Payload, error) {
	if order == nil {
		return Payload{}, &BuildError{Reason: "order is nil"}
	}
	if order.ID <= 0 {
		return Payload{}, &BuildError{OrderID: order.ID, Reason: "order id must be positive"}
	}
	if order.CreatedAt.IsZero() {
		return Payload{}, &BuildError{OrderID: order.ID, Reason: "order has no creation time"}
	}

	eventID := fmt.Sprintf("order_%d_%d", order.ID, b.now().Unix())

	switch format {
	case enums.PayloadFormatGeneric:
		event := b.buildGeneric(order, eventID)
		return Payload{Format: format, Generic: &event}, nil
	case enums.PayloadFormatMeta:
		event := b.buildMeta(order, eventID)
		return Payload{Format: format, Meta: &event}, nil
	default:
		return Payload{}, &BuildError{OrderID: order.ID, Reason: fmt.Sprintf("unknown format %q", format)}
	}
}

func (b *Builder) buildGeneric(order *models.Order, eventID string) GenericEvent {
	return GenericEvent{
		ClientName:     genericClientName,
		EventName:      genericEventName,
		EventTime:      order.CreatedAt.Unix(),
		EventID:        eventID,
		ActionSource:   actionSource,
		EventSourceURL: order.CheckoutURL,
		UserData:       genericUserData(order),
		CustomData:     genericCustomData(order),
		Metadata:       b.metadata(order),
	}
}

func genericUserData(order *models.Order) GenericUserData {
	billing := order.Billing
	ud := GenericUserData{UserType: userTypeGuest}

	if v, ok := pii.Field(pii.KindEmail, billing.Email); ok {
		ud.Em, ud.EmailAddress = []string{v.Hash}, v.Plain
	}
	if v, ok := pii.Field(pii.KindPhone, billing.Phone); ok {
		ud.Ph, ud.PhoneNumber = []string{v.Hash}, v.Plain
	}
	if v, ok := pii.Field(pii.KindFirstName, billing.FirstName); ok {
		ud.Fn, ud.FirstName = []string{v.Hash}, v.Plain
	}
	if v, ok := pii.Field(pii.KindLastName, billing.LastName); ok {
		ud.Ln, ud.LastName = []string{v.Hash}, v.Plain
	}
	if v, ok := pii.Field(pii.KindCity, billing.City); ok {
		ud.Ct, ud.City = []string{v.Hash}, v.Plain
	}
	if v, ok := pii.Field(pii.KindState, billing.State); ok {
		ud.St, ud.State = []string{v.Hash}, v.Plain
	}
	if v, ok := pii.Field(pii.KindZip, billing.Postcode); ok {
		ud.Zp, ud.ZipCode = []string{v.Hash}, v.Plain
	}
	if v, ok := pii.Field(pii.KindCountry, billing.Country); ok {
		ud.Country, ud.CountryCode = []string{v.Hash}, v.Plain
	}

	if !order.IsGuest() {
		id := *order.CustomerID
		if v, ok := pii.Field(pii.KindExternalID, strconv.FormatInt(id, 10)); ok {
			ud.ExternalID = []string{v.Hash}
		}
		ud.UserID = id
		ud.Username = order.CustomerUsername
		ud.UserType = userTypeMember
	}
	ud.BillingCompany = strings.TrimSpace(billing.Company)

	if attr := order.Attribution; attr != nil {
		ud.ClientIPAddress = attr.ClientIP
		ud.ClientUserAgent = attr.UserAgent
		ud.FBP = attr.FBP
		ud.FBC = clickID(order)
	}
	return ud
}

func genericCustomData(order *models.Order) CustomData {
	cd := CustomData{
		Currency:        currencyOf(order),
		Value:           Money(order.Total),
		OrderID:         strconv.FormatInt(order.ID, 10),
		NumItems:        itemCount(order),
		ContentType:     contentType,
		ContentIDs:      []string{},
		ContentNames:    []string{},
		ContentCategory: []string{},
		Contents:        []ContentItem{},
		Subtotal:        Money(order.Subtotal),
		Tax:             Money(order.Tax),
		Shipping:        Money(order.Shipping),
		Discount:        Money(order.Discount),
		OrderKey:        order.OrderKey,
		Coupon:          joinCoupons(order.CouponCodes),
	}

	seenCategory := map[string]struct{}{}
	for _, item := range order.Items {
		product := item.Product
		if product == nil {
			continue
		}
		id := strconv.FormatInt(product.ID, 10)
		name := productName(item)
		category := CategoryOf(product)

		cd.ContentIDs = append(cd.ContentIDs, id)
		cd.ContentNames = append(cd.ContentNames, name)
		if category != "" {
			if _, dup := seenCategory[category]; !dup {
				seenCategory[category] = struct{}{}
				cd.ContentCategory = append(cd.ContentCategory, category)
			}
		}

		sku := strings.TrimSpace(product.SKU)
		if sku == "" {
			sku = id
		}
		cd.Contents = append(cd.Contents, ContentItem{
			ID:        id,
			Name:      name,
			Category:  category,
			Quantity:  item.Quantity,
			ItemPrice: Money(item.UnitPrice),
			Brand:     BrandOf(product),
			SKU:       sku,
		})
	}
	return cd
}

func (b *Builder) metadata(order *models.Order) Metadata {
	md := Metadata{
		Source:        b.source,
		PluginVersion: b.version,
		SiteURL:       b.siteURL,
		OrderStatus:   order.Status.String(),
		PaymentMethod: order.PaymentMethodTitle,
		OrderDate:     order.CreatedAt.Format(time.RFC3339),
	}
	if md.PaymentMethod == "" {
		md.PaymentMethod = order.PaymentMethod
	}
	if attr := order.Attribution; attr != nil {
		md.GCLID = attr.GCLID
		md.UTMSource = attr.UTMSource
		md.UTMMedium = attr.UTMMedium
		md.UTMCampaign = attr.UTMCampaign
		md.UTMTerm = attr.UTMTerm
		md.UTMContent = attr.UTMContent
	}
	return md
}

func (b *Builder) buildMeta(order *models.Order, eventID string) MetaEvent {
	return MetaEvent{
		EventName:      metaEventName,
		EventTime:      order.CreatedAt.Unix(),
		EventID:        eventID,
		ActionSource:   actionSource,
		EventSourceURL: order.CheckoutURL,
		UserData:       metaUserData(order),
		CustomData:     metaCustomData(order),
	}
}

func metaUserData(order *models.Order) MetaUserData {
	billing := order.Billing
	ud := MetaUserData{}

	ud.Em, _ = pii.MetaText(billing.Email)
	ud.Ph, _ = pii.MetaPhone(billing.Phone)
	ud.Fn, _ = pii.MetaText(billing.FirstName)
	ud.Ln, _ = pii.MetaText(billing.LastName)
	ud.Ct, _ = pii.MetaCity(billing.City)
	ud.St, _ = pii.MetaText(billing.State)
	ud.Zp, _ = pii.MetaZip(billing.Postcode)
	ud.Country, _ = pii.MetaText(billing.Country)
	if ud.Fn != "" {
		ud.Ge = pii.InferGender(billing.FirstName)
	}
	if !order.IsGuest() {
		ud.ExternalID = strconv.FormatInt(*order.CustomerID, 10)
	}
	if attr := order.Attribution; attr != nil {
		ud.ClientIPAddress = attr.ClientIP
		ud.ClientUserAgent = attr.UserAgent
		ud.FBP = attr.FBP
		ud.FBC = clickID(order)
	}
	return ud
}

func metaCustomData(order *models.Order) MetaCustomData {
	orderID := strconv.FormatInt(order.ID, 10)
	cd := MetaCustomData{
		Currency:      currencyOf(order),
		Value:         Money(order.Total),
		OrderID:       orderID,
		TransactionID: orderID,
		ContentType:   contentType,
		ContentIDs:    []string{},
		Contents:      []MetaContent{},
		NumItems:      itemCount(order),
	}

	names := []string{}
	for _, item := range order.Items {
		if item.Product == nil {
			continue
		}
		id := strconv.FormatInt(item.Product.ID, 10)
		cd.ContentIDs = append(cd.ContentIDs, id)
		cd.Contents = append(cd.Contents, MetaContent{
			ID:        id,
			Quantity:  item.Quantity,
			ItemPrice: Money(item.UnitPrice),
		})
		names = append(names, productName(item))
	}
	cd.ContentName = strings.Join(names, ", ")
	return cd
}

// CategoryOf returns the first category name assigned to the product.
func CategoryOf(product *models.Product) string {
	if product == nil {
		return ""
	}
	for _, name := range product.Categories {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// BrandOf resolves a product brand from its attributes, then from brand
// taxonomies, returning "" when nothing matches. Best effort: stores model
// brands in many ways and this only checks the common ones.
func BrandOf(product *models.Product) string {
	if product == nil {
		return ""
	}
	for _, key := range brandAttributes {
		if v := strings.TrimSpace(product.Attributes[key]); v != "" {
			return v
		}
	}
	for _, tax := range brandTaxonomies {
		for _, term := range product.Taxonomies[tax] {
			if v := strings.TrimSpace(term); v != "" {
				return v
			}
		}
	}
	return ""
}

// clickID returns the stored fbc, or builds one from fbclid.
func clickID(order *models.Order) string {
	attr := order.Attribution
	if attr.FBC != "" {
		return attr.FBC
	}
	if attr.FBCLID == "" {
		return ""
	}
	ts := attr.CapturedAt
	if ts == 0 {
		ts = order.CreatedAt.UnixMilli()
	}
	return fmt.Sprintf("fb.1.%d.%s", ts, attr.FBCLID)
}

func productName(item models.OrderLineItem) string {
	if item.Product != nil && strings.TrimSpace(item.Product.Name) != "" {
		return item.Product.Name
	}
	return item.Name
}

func itemCount(order *models.Order) int {
	total := 0
	for _, item := range order.Items {
		total += item.Quantity
	}
	return total
}

func joinCoupons(codes []string) string {
	clean := make([]string, 0, len(codes))
	for _, code := range codes {
		if trimmed := strings.TrimSpace(code); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	return strings.Join(clean, ", ")
}

// currencyOf upper-cases the stored code; malformed values pass through untouched.
func currencyOf(order *models.Order) string {
	c, err := enums.ParseCurrency(order.Currency)
	if err != nil {
		return order.Currency
	}
	return c.String()
}
