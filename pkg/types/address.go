package types

// Address captures a delivery destination. Persisted as jsonb.
type Address struct {
	Label        string   `json:"label,omitempty"`
	Street       string   `json:"street"`
	Suburb       string   `json:"suburb,omitempty"`
	City         string   `json:"city"`
	PostalCode   string   `json:"postal_code,omitempty"`
	Country      string   `json:"country,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
	Location     Location `json:"location"`
}
