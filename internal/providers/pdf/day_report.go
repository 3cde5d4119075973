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
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// DayReportData is preformatted so the renderer only lays out text.
type DayReportData struct {
	AppName     string
	UserID      string
	Date        string
	GeneratedAt string

	Entries []DayReportEntry
	Totals  DayReportEntry
	Goals   []GoalLine
}

type DayReportEntry struct {
	Time     string
	Food     string
	Quantity string
	Calories string
	Fat      string
	Protein  string
	Carbs    string
}

type GoalLine struct {
	Label string
	Total string
	Goal  string
	Delta string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateDayReport(ctx context.Context, data DayReportData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Resumen diario de consumo", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.AppName, props.Text{
			Size:  10,
			Align: align.Right,
		}),
	)

	m.AddRow(18,
		col.New(8).Add(
			text.New("Usuario: "+data.UserID, props.Text{Top: 0}),
			text.New("Fecha: "+data.Date, props.Text{Top: 5}),
			text.New("Generado: "+data.GeneratedAt, props.Text{Top: 10}),
		),
		col.New(4),
	)

	header := props.Text{Style: fontstyle.Bold, Size: 8}
	headerRight := props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Right}
	m.AddRow(10,
		text.NewCol(2, "Hora", header),
		text.NewCol(3, "Alimento", header),
		text.NewCol(1, "g", headerRight),
		text.NewCol(2, "Calorías", headerRight),
		text.NewCol(1, "Grasas", headerRight),
		text.NewCol(1, "Proteínas", headerRight),
		text.NewCol(2, "Carbohidratos", headerRight),
	)

	if len(data.Entries) == 0 {
		m.AddRow(10, text.NewCol(12, "Sin registros para este día.", props.Text{Size: 9, Style: fontstyle.Italic}))
	}
	for _, e := range data.Entries {
		addEntryRow(m, e, props.Text{Size: 8}, props.Text{Size: 8, Align: align.Right})
	}

	if len(data.Entries) > 0 {
		addEntryRow(m, data.Totals,
			props.Text{Size: 8, Style: fontstyle.Bold},
			props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right},
		)
	}

	if len(data.Goals) > 0 {
		m.AddRow(14,
			text.NewCol(12, "Objetivos", props.Text{Size: 12, Style: fontstyle.Bold, Top: 5}),
		)
		m.AddRow(8,
			text.NewCol(3, "Nutriente", header),
			text.NewCol(3, "Total", headerRight),
			text.NewCol(3, "Objetivo", headerRight),
			text.NewCol(3, "Diferencia", headerRight),
		)
		for _, g := range data.Goals {
			m.AddRow(8,
				text.NewCol(3, g.Label, props.Text{Size: 8}),
				text.NewCol(3, g.Total, props.Text{Size: 8, Align: align.Right}),
				text.NewCol(3, g.Goal, props.Text{Size: 8, Align: align.Right}),
				text.NewCol(3, g.Delta, props.Text{Size: 8, Align: align.Right}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func addEntryRow(m core.Maroto, e DayReportEntry, left, right props.Text) {
	m.AddRow(8,
		text.NewCol(2, e.Time, left),
		text.NewCol(3, e.Food, left),
		text.NewCol(1, e.Quantity, right),
		text.NewCol(2, e.Calories, right),
		text.NewCol(1, e.Fat, right),
		text.NewCol(1, e.Protein, right),
		text.NewCol(2, e.Carbs, right),
	)
}
