package cart

import "github.com/angelmondragon/dailyledger/internal/cutoff"

// RowView is the display form of a row.
type RowView struct {
	Code          string `json:"code"`
	DisplayName   string `json:"displayName"`
	EnglishName   string `json:"englishName,omitempty"`
	Price         string `json:"price"`
	Measure       string `json:"measure"`
	MinimumOrder  int64  `json:"minimumOrder,omitempty"`
	OrderQuantity int64  `json:"orderQuantity"`
	OrderMeasure  string `json:"orderMeasure"`
	OrderPrice    int64  `json:"orderPrice"`
	OffSale       bool   `json:"offSale,omitempty"`
	Defect        string `json:"defect,omitempty"`
}

// View is a read-only snapshot of the model for rendering.
type View struct {
	Date                string       `json:"date"`
	UserID              string       `json:"userId"`
	UserName            string       `json:"userName"`
	State               cutoff.State `json:"state"`
	Cutoff              string       `json:"cutoff"`
	CutoffDisplay       string       `json:"cutoffDisplay"`
	Editing             bool         `json:"editing"`
	ExistingOrderNumber string       `json:"existingOrderNumber,omitempty"`
	Rows                []RowView    `json:"rows"`
	Total               int64        `json:"total"`
	CheckoutEnabled     bool         `json:"checkoutEnabled"`
}

// View snapshots the current values.
func (m *Model) View() View {
	v := View{
		Date:            m.data.Date,
		UserID:          m.data.User.ID,
		UserName:        m.data.User.Name,
		State:           m.data.Decision.State,
		Cutoff:          m.data.Decision.Cutoff,
		CutoffDisplay:   m.data.Decision.Display,
		Rows:            make([]RowView, 0, len(m.rows)),
		Total:           m.Total(),
		CheckoutEnabled: m.CheckoutEnabled(),
	}
	if m.data.ExistingOrder != nil {
		v.Editing = true
		v.ExistingOrderNumber = m.data.ExistingOrder.OrderNumber
	}
	for _, row := range m.rows {
		rv := RowView{
			Code:          row.Code,
			DisplayName:   row.DisplayName,
			EnglishName:   row.EnglishName,
			Price:         row.Price,
			Measure:       row.DisplayMeasure(),
			MinimumOrder:  row.Minimum(),
			OrderQuantity: row.Quantity.Get(),
			OrderMeasure:  row.OrderMeasure,
			OrderPrice:    row.OrderPrice.Get(),
			OffSale:       row.OffSale,
		}
		if row.Defect != nil {
			rv.Defect = row.Defect.Error()
		}
		v.Rows = append(v.Rows, rv)
	}
	return v
}
