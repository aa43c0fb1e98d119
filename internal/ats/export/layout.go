package export

import (
	"os"
	"strconv"
	"strings"

	"github.com/cicsa-sst/ats/internal/ats/types"
)

// Геометрия страницы, мм. A4 альбомная.
const (
	PageWidth    = 297.0
	PageHeight   = 210.0
	MarginSide   = 10.0
	MarginTop    = 8.0
	MarginBottom = 8.0
	UsableWidth  = PageWidth - 2*MarginSide
)

const (
	colorBlue  = "#002b5c"
	colorGray  = "#f2f3f5"
	colorWhite = "#ffffff"
)

const (
	// CheckMark отметка наличия EPP
	CheckMark = "✔"

	DefaultCompany = "CICSA PERU S.A.C."

	reportTitle          = "CHARLA DE 5 MIN / ANALISIS DE TRABAJO SEGURO (ATS)"
	signaturePlaceholder = "_________________"
	footerText           = "Área de Seguridad y Salud en el Trabajo — CICSA PERÚ S.A.C."
	severityMarker       = "X"
)

var legendLines = []string{
	"A: ALTO RIESGO INTOLERABLE REQUIERE DE CONTROL INMEDIATO. DE NO CONTROLARSE EL PELIGRO SE PARALIZA LA OBRA.",
	"M: INICIAR MEDIDAS PARA CONTROLAR/MINIMIZAR EL RIESGO. EVALUAR SI LA ACCION SE PUEDE EJECUTAR DE MANERA INMEDIATA",
	"B: RIESGO TOLERABLE",
}

// Описание опасности, одинаковое для каждой строки матрицы
var riskBoilerplate = [3]string{
	"Riesgo mecánico / eléctrico / físico",
	"Accidente / lesión / caída",
	"Uso de EPP / señalización / orden y limpieza",
}

type BlockKind string

const (
	BlockHeader          BlockKind = "header"
	BlockGeneralData     BlockKind = "general_data"
	BlockParticipants    BlockKind = "participants"
	BlockBriefing        BlockKind = "briefing"
	BlockRiskMatrix      BlockKind = "risk_matrix"
	BlockLegend          BlockKind = "legend"
	BlockRecommendations BlockKind = "recommendations"
	BlockSignatures      BlockKind = "signatures"
	BlockPhotos          BlockKind = "photos"
	BlockFooter          BlockKind = "footer"
)

// Layout последовательность блоков документа.
type Layout struct {
	Blocks []Block
}

// Kinds возвращает виды блоков по порядку.
func (l Layout) Kinds() []BlockKind {
	res := make([]BlockKind, len(l.Blocks))
	for i, b := range l.Blocks {
		res[i] = b.Kind
	}
	return res
}

// Block возвращает первый блок указанного вида.
func (l Layout) Block(kind BlockKind) (Block, bool) {
	for _, b := range l.Blocks {
		if b.Kind == kind {
			return b, true
		}
	}
	return Block{}, false
}

type Block struct {
	Kind BlockKind

	Title      *Paragraph
	Table      *Table
	Paragraphs []Paragraph

	SpaceBefore float64
	SpaceAfter  float64
}

type Paragraph struct {
	Text  string
	Bold  bool
	Size  float64
	Color string
	Align string
}

type Table struct {
	ColWidths []float64
	Rows      []Row
	// Количество первых строк, повторяемых после разрыва страницы
	HeaderRows int

	Box        bool
	Grid       bool
	Fill       string
	HeaderFill string
	VAlign     string
}

// Width сумма ширин столбцов.
func (t Table) Width() float64 {
	var w float64
	for _, c := range t.ColWidths {
		w += c
	}
	return w
}

type Row struct {
	Cells     []Cell
	MinHeight float64
}

// Cell ячейка таблицы. Text хранится экранированным, Markup=true означает разметку переноса строк.
type Cell struct {
	Text   string
	Markup bool

	Image       string
	ImageWidth  float64
	ImageHeight float64
	// Текст вместо изображения, если файл не найден или не читается
	Placeholder string

	Span    int
	RowSpan int

	Bold    bool
	Size    float64
	Leading float64
	Align   string
	Color   string

	LineAbove bool
}

func (c Cell) span() int {
	if c.Span < 1 {
		return 1
	}
	return c.Span
}

func (c Cell) rowSpan() int {
	if c.RowSpan < 1 {
		return 1
	}
	return c.RowSpan
}

type LayoutOptions struct {
	Company string
	// Exists проверяет доступность файла изображения
	Exists func(path string) bool
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func text(s string, size float64, align string) Cell {
	return Cell{Text: escapeText(s), Size: size, Align: align}
}

func label(s string) Cell {
	return Cell{Text: escapeText(s), Bold: true, Size: 7, Align: "C"}
}

func sectionTitle(s string, size float64) *Paragraph {
	return &Paragraph{Text: s, Bold: true, Size: size, Color: colorBlue, Align: "L"}
}

// BuildLayout строит модель документа по заявке. Не зависит от времени, обращается только к Exists для путей изображений.
func BuildLayout(sub types.Submission, opts LayoutOptions) Layout {
	if opts.Company == "" {
		opts.Company = DefaultCompany
	}
	if opts.Exists == nil {
		opts.Exists = fileExists
	}

	blocks := []Block{
		headerBlock(),
		generalDataBlock(sub, opts),
		participantsBlock(sub, opts),
		briefingBlock(sub),
		riskMatrixBlock(sub),
		legendBlock(),
		recommendationsBlock(sub),
		signaturesBlock(),
	}
	if photos, ok := photosBlock(sub, opts); ok {
		blocks = append(blocks, photos)
	}
	blocks = append(blocks, Block{
		Kind:       BlockFooter,
		Paragraphs: []Paragraph{{Text: footerText, Bold: true, Size: 7, Color: colorBlue, Align: "C"}},
	})

	return Layout{Blocks: blocks}
}

func headerBlock() Block {
	info := func(k, v string) []Cell {
		return []Cell{
			{Text: escapeText(k), Bold: true, Size: 7, Align: "L", Color: colorWhite},
			{Text: escapeText(v), Size: 7, Align: "L", Color: colorWhite},
		}
	}

	// 50 + 170 + 26 + 31 = 277
	first := append([]Cell{
		{Image: logoImageName, ImageWidth: 45, ImageHeight: 15, RowSpan: 4},
		{Text: escapeText(reportTitle), Bold: true, Size: 10, Align: "C", Color: colorWhite, RowSpan: 4},
	}, info("Código:", "PE-FR-SG-31")...)

	return Block{
		Kind: BlockHeader,
		Table: &Table{
			ColWidths: []float64{50, 170, 26, 31},
			Rows: []Row{
				{Cells: first},
				{Cells: info("Versión:", "08")},
				{Cells: info("Fecha:", "09/03/2020")},
				{Cells: info("Página:", "1 de "+pageCountAlias)},
			},
			Box:  true,
			Fill: colorBlue,
		},
		SpaceAfter: 1,
	}
}

func generalDataBlock(sub types.Submission, opts LayoutOptions) Block {
	contractor := sub.Contractor
	if trimmed := strings.TrimSpace(contractor); trimmed == "" {
		contractor = opts.Company
	} else {
		contractor = trimmed
	}
	area := sub.Area
	if area == "" {
		area = "MRD F.O."
	}

	return Block{
		Kind: BlockGeneralData,
		Table: &Table{
			// 60 + 90 + 40 + 87 = 277
			ColWidths: []float64{60, 90, 40, 87},
			Rows: []Row{
				{Cells: []Cell{label("EMPRESA"), text(opts.Company, 7, "L"), label("CONTRATISTA"), text(contractor, 7, "L")}},
				{Cells: []Cell{label("PROYECTO DE TRABAJO/N°PLANO"), text(sub.Activity, 7, "L"), {}, {}}},
				{Cells: []Cell{label("FECHA"), text(sub.Date, 7, "L"), label("AREA"), text(area, 7, "L")}},
				{Cells: []Cell{label("HORA INICIO"), text(sub.StartTime, 7, "L"), label("HORA FINAL"), text(sub.EndTime, 7, "L")}},
			},
			Box:  true,
			Grid: true,
			Fill: colorGray,
		},
		SpaceAfter: 1,
	}
}

func participantsBlock(sub types.Submission, opts LayoutOptions) Block {
	// 7 + 60 + 20 + 20 + 12*7 + 43 + 43 = 277
	widths := []float64{7, 60, 20, 20}
	header := []Cell{label("Item"), label("Nombre y Apellidos de los involucrados"), label("Cargo"), label("DNI")}
	for _, c := range EquipmentCategories {
		widths = append(widths, 7)
		header = append(header, Cell{Text: verticalLabel(c.Label), Markup: true, Bold: true, Size: 5, Leading: 5, Align: "C"})
	}
	widths = append(widths, 43, 43)
	header = append(header, label("Observaciones"), label("Firma"))

	rows := []Row{{Cells: header}}
	for i, p := range sub.Participants {
		cells := []Cell{
			text(strconv.Itoa(i+1), 7, "C"),
			text(p.Name, 6.2, "L"),
			text(p.Role, 6.2, "L"),
			text(p.NationalID, 6.2, "L"),
		}
		for _, checked := range ClassifyEquipment(p.EquipmentTags) {
			mark := ""
			if checked {
				mark = CheckMark
			}
			cells = append(cells, text(mark, 6, "C"))
		}
		cells = append(cells, text(p.Observation, 6.2, "L"))

		signature := Cell{Text: escapeText(signaturePlaceholder), Size: 6, Align: "C"}
		if opts.Exists(p.SignaturePath) {
			signature = Cell{Image: p.SignaturePath, ImageWidth: 26, ImageHeight: 12, Placeholder: signaturePlaceholder, Size: 6, Align: "C"}
		}
		cells = append(cells, signature)

		rows = append(rows, Row{Cells: cells})
	}

	return Block{
		Kind:  BlockParticipants,
		Title: sectionTitle("PERSONAL PARTICIPANTE / VERIFICACIÓN DE EPP", 8),
		Table: &Table{
			ColWidths:  widths,
			Rows:       rows,
			HeaderRows: 1,
			Box:        true,
			Grid:       true,
			HeaderFill: colorGray,
		},
		SpaceAfter: 1,
	}
}

func briefingBlock(sub types.Submission) Block {
	return Block{
		Kind:  BlockBriefing,
		Title: sectionTitle("CHARLA DE 5 MINUTOS", 8),
		Table: &Table{
			// 60 + 100 + 40 + 77 = 277
			ColWidths: []float64{60, 100, 40, 77},
			Rows: []Row{
				{Cells: []Cell{label("TEMA"), text(sub.BriefingTopic, 7, "L"), label("EXPOSITOR"), text(sub.BriefingPresenter, 7, "L")}},
				{Cells: []Cell{{Text: escapeText("ANALISIS DE TRABAJO SEGURO (ATS)"), Bold: true, Size: 7, Align: "C", Span: 4}}},
				{Cells: []Cell{label("TRABAJO A REALIZAR"), text(sub.Activity, 7, "L"), label("LUGAR DE TRABAJO"), text(sub.Location, 7, "L")}},
			},
			Box:  true,
			Grid: true,
			Fill: colorGray,
		},
		SpaceAfter: 1,
	}
}

func riskMatrixBlock(sub types.Submission) Block {
	hazards := sub.Hazards
	if len(hazards) == 0 {
		hazards = []string{types.NoHazards}
	}

	rows := []Row{{Cells: []Cell{
		label("ITEM"),
		label("ACTIVIDAD DEL TRABAJO A REALIZAR"),
		label("PELIGROS"),
		label("RIESGOS"),
		label("MEDIDAS DE CONTROL"),
		label("A"),
		label("M"),
		label("B"),
	}}}
	for i, h := range hazards {
		rows = append(rows, Row{Cells: []Cell{
			text(strconv.Itoa(i+1), 7, "C"),
			text(h, 6.3, "L"),
			text(riskBoilerplate[0], 6.3, "L"),
			text(riskBoilerplate[1], 6.3, "L"),
			text(riskBoilerplate[2], 6.3, "L"),
			text("", 7, "C"),
			{Text: severityMarker, Bold: true, Size: 7, Align: "C"},
			text("", 7, "C"),
		}})
	}

	return Block{
		Kind:  BlockRiskMatrix,
		Title: sectionTitle("IDENTIFICACION DE PELIGROS, EVALUACION DE RIESGOS Y DETERMINACION DE CONTROLES", 7),
		Table: &Table{
			// 10 + 85 + 40 + 40 + 84 + 6 + 6 + 6 = 277
			ColWidths:  []float64{10, 85, 40, 40, 84, 6, 6, 6},
			Rows:       rows,
			HeaderRows: 1,
			Box:        true,
			Grid:       true,
			HeaderFill: colorGray,
		},
		SpaceAfter: 0.7,
	}
}

func legendBlock() Block {
	b := Block{Kind: BlockLegend, SpaceAfter: 1}
	for _, l := range legendLines {
		b.Paragraphs = append(b.Paragraphs, Paragraph{Text: l, Size: 6, Align: "L"})
	}
	return b
}

func recommendationsBlock(sub types.Submission) Block {
	return Block{
		Kind:  BlockRecommendations,
		Title: sectionTitle("RECOMENDACIONES", 7),
		Table: &Table{
			ColWidths: []float64{UsableWidth},
			Rows:      []Row{{Cells: []Cell{text(sub.Recommendations, 6.5, "L")}}},
			Box:       true,
			VAlign:    "T",
		},
	}
}

func signaturesBlock() Block {
	sig := func(s string) Cell {
		return Cell{Text: escapeText(s), Bold: true, Size: 7, Align: "C", Color: colorBlue, LineAbove: true}
	}
	return Block{
		Kind: BlockSignatures,
		Table: &Table{
			ColWidths: []float64{UsableWidth / 2, UsableWidth / 2},
			Rows: []Row{
				{Cells: []Cell{{}, {}}},
				{Cells: []Cell{sig("Encargado de CONTRATA/ CICSA PERU"), sig("Jefe de Obra /Supervisor CONTRATA/ CICSA PERU")}},
			},
		},
		SpaceBefore: 6.35,
		SpaceAfter:  1,
	}
}

// photosBlock собирает фото участников. Общее фото применяется ко всем участникам, только если нет ни одного индивидуального.
func photosBlock(sub types.Submission, opts LayoutOptions) (Block, bool) {
	photo := func(name, path string) Row {
		return Row{Cells: []Cell{
			text(name, 6.5, "L"),
			{Image: path, ImageWidth: 45, ImageHeight: 35, Align: "C"},
		}}
	}

	var rows []Row
	for _, p := range sub.Participants {
		if opts.Exists(p.PhotoPath) {
			rows = append(rows, photo(p.Name, p.PhotoPath))
		}
	}
	if len(rows) == 0 && opts.Exists(sub.GeneralPhotoPath) {
		for _, p := range sub.Participants {
			rows = append(rows, photo(p.Name, sub.GeneralPhotoPath))
		}
	}
	if len(rows) == 0 {
		return Block{}, false
	}

	header := Row{Cells: []Cell{
		{Text: escapeText("Nombre y Apellidos"), Bold: true, Size: 6.5, Align: "C"},
		{Text: escapeText("Foto"), Bold: true, Size: 6.5, Align: "C"},
	}}

	return Block{
		Kind:  BlockPhotos,
		Title: sectionTitle("IMAGEN DEL PERSONAL EN CAMPO CON EPP", 7),
		Table: &Table{
			ColWidths:  []float64{UsableWidth / 2, UsableWidth / 2},
			Rows:       append([]Row{header}, rows...),
			HeaderRows: 1,
			Box:        true,
			Grid:       true,
		},
		SpaceAfter: 0.7,
	}, true
}
