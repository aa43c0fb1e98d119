// Пакет для экспорта заявки ATS в PDF.
// Документ строится в два шага: BuildLayout формирует модель блоков и таблиц, pdfWriter рисует ее через fpdf.
//
// Основные возможности:
//   - Альбомный A4 с фиксированной сеткой столбцов шириной 277 мм.
//   - Повтор строк заголовка таблицы после разрыва страницы.
//   - Вставка логотипа, подписей и фото, недоступные изображения заменяются пустой ячейкой или линией подписи.
//   - Удаление временных изображений после формирования документа.
package export

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/cicsa-sst/ats/internal/ats/types"
)

var (
	//go:embed images/logo_cicsa.png
	logoImage []byte
)

const (
	logoImageName  = "logo_cicsa.png"
	pageCountAlias = "{nb}"

	fontFamily = "Helvetica"

	ptToMM   = 25.4 / 72
	cellPadX = 1.0
	cellPadY = 0.8

	boxLineWidth       = 0.6 * ptToMM
	gridLineWidth      = 0.25 * ptToMM
	signatureLineWidth = 0.8 * ptToMM
	signatureLineInset = 15.0
)

// ErrRowTooTall строка таблицы не помещается на пустую страницу вместе с шапкой.
var ErrRowTooTall = errors.New("table row does not fit on a page")

// FileName имя файла отчета по времени формирования.
func FileName(t time.Time) string {
	return "ATS_" + t.Format("20060102_150405") + ".pdf"
}

type Renderer struct {
	layout  LayoutOptions
	now     func() time.Time
	cleanup func(paths ...string)
}

// NewRenderer создает рендерер. now и cleanup могут быть nil: используются time.Now и удаление файлов с диска.
func NewRenderer(opts LayoutOptions, now func() time.Time, cleanup func(paths ...string)) *Renderer {
	if now == nil {
		now = time.Now
	}
	if cleanup == nil {
		cleanup = removeFiles
	}
	return &Renderer{layout: opts, now: now, cleanup: cleanup}
}

// Render формирует PDF по заявке. Временные изображения заявки удаляются в любом случае.
func (r *Renderer) Render(sub types.Submission) (*types.RenderedDocument, error) {
	defer r.cleanup(sub.TempFiles()...)

	now := r.now()
	layout := BuildLayout(sub, r.layout)

	var buf bytes.Buffer
	if err := WriteLayout(layout, now, &buf); err != nil {
		return nil, fmt.Errorf("render ats report: %w", err)
	}

	return &types.RenderedDocument{
		Name:      FileName(now),
		Data:      buf.Bytes(),
		CreatedAt: now,
	}, nil
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Remove report temp file", "path", p, "err", err)
		}
	}
}

// WriteLayout рисует модель документа и пишет PDF в out.
func WriteLayout(layout Layout, created time.Time, out io.Writer) error {
	return writeLayout(layout, created, out, true)
}

func writeLayout(layout Layout, created time.Time, out io.Writer, compress bool) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCompression(compress)
	pdf.SetMargins(MarginSide, MarginTop, MarginSide)
	pdf.SetAutoPageBreak(false, MarginBottom)
	pdf.SetCellMargin(0)
	pdf.AliasNbPages(pageCountAlias)
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(reportTitle, true)
	pdf.SetCreator("ats", true)

	w := pdfWriter{pdf: pdf, images: map[string]bool{}}

	pdf.RegisterImageOptionsReader(logoImageName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(logoImage))
	w.images[logoImageName] = pdf.Ok()
	if !pdf.Ok() {
		slog.Warn("Register report logo", "err", pdf.Error())
		pdf.ClearError()
	}

	pdf.AddPage()
	for _, b := range layout.Blocks {
		if err := w.writeBlock(b); err != nil {
			return fmt.Errorf("block %s: %w", b.Kind, err)
		}
	}

	return pdf.Output(out)
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	// Зарегистрированные изображения: путь -> удалось ли загрузить
	images map[string]bool
}

type placedCell struct {
	Cell
	x     float64
	width float64
}

type measuredTable struct {
	table   *Table
	cells   [][]placedCell
	heights []float64
}

func (w *pdfWriter) bottom() float64 {
	return PageHeight - MarginBottom
}

// ensureSpace начинает новую страницу, если h не помещается в остаток текущей.
func (w *pdfWriter) ensureSpace(h float64) bool {
	y := w.pdf.GetY()
	if y+h <= w.bottom() || y <= MarginTop+0.01 {
		return false
	}
	w.pdf.AddPage()
	return true
}

func (w *pdfWriter) writeBlock(b Block) error {
	if b.SpaceBefore > 0 {
		w.pdf.SetY(w.pdf.GetY() + b.SpaceBefore)
	}

	var m *measuredTable
	if b.Table != nil {
		mt := w.measureTable(b.Table)
		m = &mt
	}

	if b.Title != nil {
		need := w.paragraphHeight(*b.Title)
		if m != nil {
			// Заголовок раздела не отрывается от шапки и первой строки таблицы
			for r := 0; r < len(m.heights) && r <= m.table.HeaderRows; r++ {
				need += m.heights[r]
			}
		}
		w.ensureSpace(need)
		w.writeParagraph(*b.Title)
	}

	if m != nil {
		if err := m.checkFits(w.bottom() - MarginTop); err != nil {
			return err
		}
		w.writeTable(*m)
	}

	for _, p := range b.Paragraphs {
		w.ensureSpace(w.paragraphHeight(p))
		w.writeParagraph(p)
	}

	if b.SpaceAfter > 0 {
		w.pdf.SetY(w.pdf.GetY() + b.SpaceAfter)
	}
	return nil
}

func (w *pdfWriter) setFont(bold bool, size float64) {
	style := ""
	if bold {
		style = "B"
	}
	w.pdf.SetFont(fontFamily, style, size)
}

func lineHeight(size, leading float64) float64 {
	if leading == 0 {
		leading = size + 1.5
	}
	return leading * ptToMM
}

func (w *pdfWriter) measure(s string) float64 {
	return w.pdf.GetStringWidth(toCP1252(s))
}

func (w *pdfWriter) paragraphLines(p Paragraph) []string {
	w.setFont(p.Bold, p.Size)
	return wrapText(p.Text, UsableWidth, w.measure)
}

func (w *pdfWriter) paragraphHeight(p Paragraph) float64 {
	return float64(len(w.paragraphLines(p))) * lineHeight(p.Size, 0)
}

func (w *pdfWriter) writeParagraph(p Paragraph) {
	lines := w.paragraphLines(p)
	lh := lineHeight(p.Size, 0)
	w.setTextColor(p.Color)
	for _, l := range lines {
		w.pdf.SetX(MarginSide)
		w.pdf.CellFormat(UsableWidth, lh, toCP1252(l), "", 1, p.Align, false, 0, "")
	}
	w.pdf.SetTextColor(0, 0, 0)
}

func cellSize(c Cell) float64 {
	if c.Size == 0 {
		return 7
	}
	return c.Size
}

// cellLines строки текста ячейки после снятия разметки и переноса по ширине.
func (w *pdfWriter) cellLines(c Cell, width float64) []string {
	w.setFont(c.Bold, cellSize(c))
	var lines []string
	for _, seg := range markupLines(c.Text) {
		lines = append(lines, wrapText(seg, width, w.measure)...)
	}
	return lines
}

// textCell ячейка, которую нужно рисовать текстом: изображение недоступно, используется Placeholder.
func (w *pdfWriter) textCell(c Cell) (Cell, bool) {
	if c.Image == "" {
		return c, true
	}
	if w.loadImage(c.Image) {
		return c, false
	}
	c.Text = escapeText(c.Placeholder)
	c.Markup = false
	return c, true
}

func (w *pdfWriter) cellHeight(c Cell, width float64) float64 {
	c, isText := w.textCell(c)
	if !isText {
		return c.ImageHeight + 2*cellPadY
	}
	lines := w.cellLines(c, width-2*cellPadX)
	return float64(len(lines))*lineHeight(cellSize(c), c.Leading) + 2*cellPadY
}

// measureTable раскладывает ячейки по столбцам с учетом Span и RowSpan и вычисляет высоты строк.
func (w *pdfWriter) measureTable(t *Table) measuredTable {
	xs := make([]float64, len(t.ColWidths)+1)
	for i, cw := range t.ColWidths {
		xs[i+1] = xs[i] + cw
	}

	m := measuredTable{
		table:   t,
		cells:   make([][]placedCell, len(t.Rows)),
		heights: make([]float64, len(t.Rows)),
	}
	covered := make([]int, len(t.ColWidths))
	for r, row := range t.Rows {
		col := 0
		for _, c := range row.Cells {
			for col < len(covered) && covered[col] > 0 {
				col++
			}
			if col >= len(t.ColWidths) {
				break
			}
			span := min(c.span(), len(t.ColWidths)-col)
			m.cells[r] = append(m.cells[r], placedCell{Cell: c, x: xs[col], width: xs[col+span] - xs[col]})
			if rs := c.rowSpan(); rs > 1 {
				for k := col; k < col+span; k++ {
					covered[k] = rs
				}
			}
			col += span
		}
		for k := range covered {
			if covered[k] > 0 {
				covered[k]--
			}
		}

		m.heights[r] = row.MinHeight
		for _, pc := range m.cells[r] {
			if pc.rowSpan() == 1 {
				m.heights[r] = max(m.heights[r], w.cellHeight(pc.Cell, pc.width))
			}
		}
		m.heights[r] = max(m.heights[r], 2*cellPadY)
	}

	for r := range m.cells {
		for _, pc := range m.cells[r] {
			rs := min(pc.rowSpan(), len(m.heights)-r)
			if rs == 1 {
				continue
			}
			need := w.cellHeight(pc.Cell, pc.width)
			if have := m.spanHeight(r, rs); need > have {
				m.heights[r+rs-1] += need - have
			}
		}
	}
	return m
}

func (m measuredTable) spanHeight(r, rs int) float64 {
	var h float64
	for i := r; i < r+rs && i < len(m.heights); i++ {
		h += m.heights[i]
	}
	return h
}

// groupHeight высота строки вместе со строками, объединенными с ней по RowSpan.
func (m measuredTable) groupHeight(r int) float64 {
	h := m.heights[r]
	for _, pc := range m.cells[r] {
		h = max(h, m.spanHeight(r, pc.rowSpan()))
	}
	return h
}

// checkFits проверяет, что каждая строка помещается на страницу высотой pageHeight после повтора шапки.
func (m measuredTable) checkFits(pageHeight float64) error {
	header := m.spanHeight(0, m.table.HeaderRows)
	for r := range m.heights {
		avail := pageHeight
		if r >= m.table.HeaderRows {
			avail -= header
		}
		if h := m.groupHeight(r); h > avail {
			return fmt.Errorf("%w: row %d height %.1fmm, available %.1fmm", ErrRowTooTall, r, h, avail)
		}
	}
	return nil
}

func (w *pdfWriter) writeTable(m measuredTable) {
	t := m.table
	segmentTop := w.pdf.GetY()
	rowsOnPage := 0

	for r := range t.Rows {
		if rowsOnPage > 0 && w.pdf.GetY()+m.groupHeight(r) > w.bottom() {
			w.closeSegment(t, segmentTop)
			w.pdf.AddPage()
			segmentTop = w.pdf.GetY()
			rowsOnPage = 0
			if r >= t.HeaderRows {
				for h := 0; h < t.HeaderRows; h++ {
					w.writeRow(m, h)
					rowsOnPage++
				}
			}
		}
		w.writeRow(m, r)
		rowsOnPage++
	}
	w.closeSegment(t, segmentTop)
}

func (w *pdfWriter) closeSegment(t *Table, top float64) {
	if !t.Box {
		return
	}
	w.pdf.SetDrawColor(0, 0, 0)
	w.pdf.SetLineWidth(boxLineWidth)
	w.pdf.Rect(MarginSide, top, t.Width(), w.pdf.GetY()-top, "D")
}

func (w *pdfWriter) writeRow(m measuredTable, r int) {
	t := m.table
	y := w.pdf.GetY()

	fill := t.Fill
	if r < t.HeaderRows && t.HeaderFill != "" {
		fill = t.HeaderFill
	}

	for _, pc := range m.cells[r] {
		x := MarginSide + pc.x
		h := m.spanHeight(r, pc.rowSpan())

		if fill != "" {
			w.setFillColor(fill)
			w.pdf.Rect(x, y, pc.width, h, "F")
		}
		if t.Grid {
			w.pdf.SetDrawColor(0, 0, 0)
			w.pdf.SetLineWidth(gridLineWidth)
			w.pdf.Rect(x, y, pc.width, h, "D")
		}
		if pc.LineAbove {
			w.pdf.SetDrawColor(0, 0, 0)
			w.pdf.SetLineWidth(signatureLineWidth)
			w.pdf.Line(x+signatureLineInset, y, x+pc.width-signatureLineInset, y)
		}
		w.writeCellContent(pc.Cell, x, y, pc.width, h, t.VAlign)
	}

	w.pdf.SetXY(MarginSide, y+m.heights[r])
}

func (w *pdfWriter) writeCellContent(c Cell, x, y, width, height float64, valign string) {
	c, isText := w.textCell(c)
	if !isText {
		ix := x + cellPadX
		if c.Align != "L" {
			ix = x + (width-c.ImageWidth)/2
		}
		iy := y + (height-c.ImageHeight)/2
		w.pdf.ImageOptions(c.Image, ix, iy, c.ImageWidth, c.ImageHeight, false, fpdf.ImageOptions{}, 0, "")
		return
	}

	size := cellSize(c)
	lines := w.cellLines(c, width-2*cellPadX)
	lh := lineHeight(size, c.Leading)

	ty := y + (height-float64(len(lines))*lh)/2
	if valign == "T" {
		ty = y + cellPadY
	}

	align := c.Align
	if align == "" {
		align = "C"
	}

	w.setTextColor(c.Color)
	for i, l := range lines {
		w.pdf.SetXY(x+cellPadX, ty+float64(i)*lh)
		if l == CheckMark {
			// ✔ в ZapfDingbats
			w.pdf.SetFont("ZapfDingbats", "", size)
			w.pdf.CellFormat(width-2*cellPadX, lh, "4", "", 0, "C", false, 0, "")
			w.setFont(c.Bold, size)
			continue
		}
		w.pdf.CellFormat(width-2*cellPadX, lh, toCP1252(l), "", 0, align, false, 0, "")
	}
	w.pdf.SetTextColor(0, 0, 0)
}

// loadImage регистрирует изображение с диска один раз. Нечитаемые файлы запоминаются как недоступные.
func (w *pdfWriter) loadImage(path string) bool {
	if ok, seen := w.images[path]; seen {
		return ok
	}
	ok := w.registerImage(path)
	w.images[path] = ok
	return ok
}

func (w *pdfWriter) registerImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("Open report image", "path", path, "err", err)
		return false
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		slog.Warn("Decode report image", "path", path, "err", err)
		return false
	}

	var imageType string
	switch format {
	case "png":
		imageType = "PNG"
	case "jpeg":
		imageType = "JPG"
	case "gif":
		imageType = "GIF"
	default:
		slog.Warn("Unsupported report image format", "path", path, "format", format)
		return false
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false
	}
	w.pdf.RegisterImageOptionsReader(path, fpdf.ImageOptions{ImageType: imageType}, f)
	if !w.pdf.Ok() {
		slog.Warn("Register report image", "path", path, "err", w.pdf.Error())
		w.pdf.ClearError()
		return false
	}
	return true
}

func (w *pdfWriter) setTextColor(hex string) {
	r, g, b := parseHexColor(hex)
	w.pdf.SetTextColor(r, g, b)
}

func (w *pdfWriter) setFillColor(hex string) {
	r, g, b := parseHexColor(hex)
	w.pdf.SetFillColor(r, g, b)
}

// parseHexColor разбирает цвет вида #rrggbb, пустая или некорректная строка дает черный.
func parseHexColor(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	values, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || len(hex) != 6 {
		return 0, 0, 0
	}
	return int(uint8(values >> 16)), int(uint8((values >> 8) & 0xFF)), int(uint8(values & 0xFF))
}
