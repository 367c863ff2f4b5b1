package payload

// GenericEvent is the SGTM Data Client body. Identity fields are sent both
// hashed and in normalized plaintext.
type GenericEvent struct {
	ClientName     string          `json:"client_name"`
	EventName      string          `json:"event_name"`
	EventTime      int64           `json:"event_time"`
	EventID        string          `json:"event_id"`
	ActionSource   string          `json:"action_source"`
	EventSourceURL string          `json:"event_source_url,omitempty"`
	UserData       GenericUserData `json:"user_data"`
	CustomData     CustomData      `json:"custom_data"`
	Metadata       Metadata        `json:"metadata"`
}

type GenericUserData struct {
	Em              []string `json:"em,omitempty"`
	EmailAddress    string   `json:"email_address,omitempty"`
	Ph              []string `json:"ph,omitempty"`
	PhoneNumber     string   `json:"phone_number,omitempty"`
	Fn              []string `json:"fn,omitempty"`
	FirstName       string   `json:"first_name,omitempty"`
	Ln              []string `json:"ln,omitempty"`
	LastName        string   `json:"last_name,omitempty"`
	Ct              []string `json:"ct,omitempty"`
	City            string   `json:"city,omitempty"`
	St              []string `json:"st,omitempty"`
	State           string   `json:"state,omitempty"`
	Zp              []string `json:"zp,omitempty"`
	ZipCode         string   `json:"zip_code,omitempty"`
	Country         []string `json:"country,omitempty"`
	CountryCode     string   `json:"country_code,omitempty"`
	ExternalID      []string `json:"external_id,omitempty"`
	UserID          int64    `json:"user_id,omitempty"`
	Username        string   `json:"username,omitempty"`
	UserType        string   `json:"user_type"`
	BillingCompany  string   `json:"billing_company,omitempty"`
	ClientIPAddress string   `json:"client_ip_address,omitempty"`
	ClientUserAgent string   `json:"client_user_agent,omitempty"`
	FBP             string   `json:"fbp,omitempty"`
	FBC             string   `json:"fbc,omitempty"`
}

type CustomData struct {
	Currency        string        `json:"currency"`
	Value           Money         `json:"value"`
	OrderID         string        `json:"order_id"`
	NumItems        int           `json:"num_items"`
	ContentType     string        `json:"content_type"`
	ContentIDs      []string      `json:"content_ids"`
	ContentNames    []string      `json:"content_names"`
	ContentCategory []string      `json:"content_category"`
	Contents        []ContentItem `json:"contents"`
	Subtotal        Money         `json:"subtotal"`
	Tax             Money         `json:"tax"`
	Shipping        Money         `json:"shipping"`
	Discount        Money         `json:"discount"`
	OrderKey        string        `json:"order_key,omitempty"`
	Coupon          string        `json:"coupon,omitempty"`
}

type ContentItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	ItemPrice Money  `json:"item_price"`
	Brand     string `json:"brand"`
	SKU       string `json:"sku"`
}

type Metadata struct {
	Source        string `json:"source"`
	PluginVersion string `json:"plugin_version"`
	SiteURL       string `json:"site_url,omitempty"`
	OrderStatus   string `json:"order_status"`
	PaymentMethod string `json:"payment_method,omitempty"`
	OrderDate     string `json:"order_date"`
	GCLID         string `json:"gclid,omitempty"`
	UTMSource     string `json:"utm_source,omitempty"`
	UTMMedium     string `json:"utm_medium,omitempty"`
	UTMCampaign   string `json:"utm_campaign,omitempty"`
	UTMTerm       string `json:"utm_term,omitempty"`
	UTMContent    string `json:"utm_content,omitempty"`
}
