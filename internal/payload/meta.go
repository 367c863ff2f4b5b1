package payload

// MetaEvent mirrors a Conversions API server event. User data carries
// normalized plaintext only; hashing is left to the tagging container.
type MetaEvent struct {
	EventName      string         `json:"event_name"`
	EventTime      int64          `json:"event_time"`
	EventID        string         `json:"event_id"`
	ActionSource   string         `json:"action_source"`
	EventSourceURL string         `json:"event_source_url,omitempty"`
	UserData       MetaUserData   `json:"user_data"`
	CustomData     MetaCustomData `json:"custom_data"`
}

type MetaUserData struct {
	Em         string `json:"em,omitempty"`
	Ph         string `json:"ph,omitempty"`
	Fn         string `json:"fn,omitempty"`
	Ln         string `json:"ln,omitempty"`
	Ct         string `json:"ct,omitempty"`
	St         string `json:"st,omitempty"`
	Zp         string `json:"zp,omitempty"`
	Country    string `json:"country,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	// Ge is inferred from the first name and is a best-effort guess.
	Ge              string `json:"ge,omitempty"`
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
	FBC             string `json:"fbc,omitempty"`
	FBP             string `json:"fbp,omitempty"`
}

type MetaCustomData struct {
	Currency      string        `json:"currency"`
	Value         Money         `json:"value"`
	OrderID       string        `json:"order_id"`
	TransactionID string        `json:"transaction_id"`
	ContentType   string        `json:"content_type"`
	ContentIDs    []string      `json:"content_ids"`
	ContentName   string        `json:"content_name,omitempty"`
	Contents      []MetaContent `json:"contents"`
	NumItems      int           `json:"num_items"`
}

type MetaContent struct {
	ID        string `json:"id"`
	Quantity  int    `json:"quantity"`
	ItemPrice Money  `json:"item_price"`
}
