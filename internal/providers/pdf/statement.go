package pdf

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementData is the late-payment statement attached to overdue alerts.
type StatementData struct {
	OrgName      string
	OrgEmail     string
	Reference    string
	Period       string
	DueDate      string
	HardDeadline string
	DaysLate     int

	Currency   string
	Amount     string
	LateFee    string
	AmountDue  string
	TotalPaid  string
	AmountOwed string
}

func (p *PDFProvider) GenerateStatement(ctx context.Context, st StatementData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Overdue statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, st.OrgName, props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Invoice: "+st.Reference, props.Text{Top: 0}),
			text.New("Period: "+st.Period, props.Text{Top: 4}),
			text.New("Due date: "+st.DueDate, props.Text{Top: 8}),
			text.New("Payment deadline: "+st.HardDeadline, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Days late", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(strconv.Itoa(st.DaysLate), props.Text{Top: 5, Align: align.Right}),
		),
	)

	rows := [][2]string{
		{"Tuition", st.Amount},
		{"Late fees", st.LateFee},
		{"Amount due", st.AmountDue},
		{"Paid so far", st.TotalPaid},
	}
	for _, r := range rows {
		m.AddRow(8,
			col.New(6),
			text.NewCol(3, r[0], props.Text{Size: 9}),
			text.NewCol(3, st.Currency+" "+r[1], props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Outstanding", props.Text{Size: 10, Style: fontstyle.Bold, Top: 3}),
		text.NewCol(3, st.Currency+" "+st.AmountOwed, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 3}),
	)
	m.AddRow(10,
		text.NewCol(12, "Late fees grow every 5 days past the due date. Questions: "+st.OrgEmail, props.Text{Size: 8, Top: 4}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
