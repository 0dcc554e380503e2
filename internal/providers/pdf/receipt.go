package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptData is a rendered tuition or salary receipt. Amounts are
// preformatted.
type ReceiptData struct {
	Title         string
	OrgName       string
	OrgEmail      string
	ReceiptNumber string
	Reference     string
	Period        string
	IssuedAt      string
	PaidAt        string

	RecipientLabel string
	RecipientEmail string

	Currency string
	Lines    []ReceiptLine
	Total    string
}

type ReceiptLine struct {
	Description string
	Date        string
	Amount      string
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, receipt.Title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, receipt.OrgName, props.Text{
			Size:  11,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Receipt number: "+receipt.ReceiptNumber, props.Text{Top: 0}),
			text.New("Reference: "+receipt.Reference, props.Text{Top: 4}),
			text.New("Period: "+receipt.Period, props.Text{Top: 8}),
			text.New("Issued: "+receipt.IssuedAt, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Received from", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(receipt.RecipientLabel, props.Text{Top: 5, Align: align.Right}),
			text.New(receipt.RecipientEmail, props.Text{Top: 9, Align: align.Right}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, receipt.Currency+" "+receipt.Total+" paid on "+receipt.PaidAt, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, line := range receipt.Lines {
		m.AddRow(8,
			text.NewCol(6, line.Description, props.Text{Size: 9}),
			text.NewCol(3, line.Date, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, line.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(6),
		text.NewCol(3, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(3, receipt.Total, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(10,
		text.NewCol(12, "Questions: "+receipt.OrgEmail, props.Text{Size: 8, Top: 4}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
