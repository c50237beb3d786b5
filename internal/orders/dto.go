package orders

// SubmitInput carries the quantities a customer asked for, keyed by item code.
// Items left out are not ordered.
type SubmitInput struct {
	Items map[string]int64
}

// FeedbackInput is a customer's rating of one order.
type FeedbackInput struct {
	Rating       int
	FeedbackText string
}

// Receipt describes the ledger row written for a submission.
type Receipt struct {
	OrderNumber string            `json:"orderNumber"`
	Date        string            `json:"date"`
	Updated     bool              `json:"updated"`
	Value       int64             `json:"value"`
	Items       map[string]string `json:"items"`
	NewCodes    []string          `json:"newCodes,omitempty"`
}

// History is a customer's orders, today's separated from the rest.
type History struct {
	Today *OrderView  `json:"today,omitempty"`
	Past  []OrderView `json:"past"`
}

// OrderView is one ledger order with decoded lines.
type OrderView struct {
	OrderNumber  string     `json:"orderNumber"`
	Date         string     `json:"date"`
	Value        string     `json:"value"`
	Paid         bool       `json:"paid"`
	Rating       string     `json:"rating,omitempty"`
	FeedbackText string     `json:"feedbackText,omitempty"`
	Lines        []LineView `json:"lines"`
}

// LineView is one item cell of an order. Defect is set when the cell could
// not be decoded or its code is not in the catalog.
type LineView struct {
	Code         string `json:"code"`
	Name         string `json:"name,omitempty"`
	Cell         string `json:"cell"`
	Quantity     int64  `json:"quantity"`
	Unit         string `json:"unit,omitempty"`
	Price        int64  `json:"price"`
	PriceMeasure string `json:"priceMeasure,omitempty"`
	LinePrice    int64  `json:"linePrice"`
	Defect       string `json:"defect,omitempty"`
}
