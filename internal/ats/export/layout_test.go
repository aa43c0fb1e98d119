package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicsa-sst/ats/internal/ats/types"
)

func existsIn(paths ...string) func(string) bool {
	set := map[string]bool{}
	for _, p := range paths {
		set[p] = true
	}
	return func(p string) bool { return set[p] }
}

func sampleSubmission() types.Submission {
	return types.Submission{
		Date:              "2024-05-10",
		StartTime:         "08:00",
		EndTime:           "12:00",
		Activity:          "Tendido de fibra",
		Location:          "Av. Arequipa 123",
		Recommendations:   "Mantener <br/> orden & limpieza",
		Supervisor:        "JOHN DOE",
		BriefingTopic:     "Riesgo eléctrico",
		BriefingPresenter: "Ing. Soto",
		Hazards:           []string{"Caída de altura", "Contacto eléctrico"},
		Participants: []types.Participant{
			{ItemNumber: 1, Name: "Juan Perez", Role: "Técnico", NationalID: "111", EquipmentTags: []string{"CASCO", "Fotocheck vigente"}, SignaturePath: "temp/firma1.png", PhotoPath: "temp/foto1.jpg"},
			{ItemNumber: 3, Name: "Ana Ramos", Role: "Líder", NationalID: "222"},
		},
		Crew:       "B-01",
		Contractor: "CONTRATA SAC",
		Area:       "MRD F.O. LIMA METROP.",
	}
}

func TestBlockOrder(t *testing.T) {
	l := BuildLayout(sampleSubmission(), LayoutOptions{Exists: existsIn("temp/foto1.jpg")})
	assert.Equal(t, []BlockKind{
		BlockHeader, BlockGeneralData, BlockParticipants, BlockBriefing, BlockRiskMatrix,
		BlockLegend, BlockRecommendations, BlockSignatures, BlockPhotos, BlockFooter,
	}, l.Kinds())
}

func TestTableWidthsSumToUsableWidth(t *testing.T) {
	l := BuildLayout(sampleSubmission(), LayoutOptions{Exists: existsIn("temp/foto1.jpg")})
	for _, b := range l.Blocks {
		if b.Table == nil {
			continue
		}
		assert.InDelta(t, UsableWidth, b.Table.Width(), 1e-9, "block %s", b.Kind)
	}
	assert.InDelta(t, 277.0, UsableWidth, 1e-9)
}

func TestParticipantRowsFollowInputOrder(t *testing.T) {
	l := BuildLayout(sampleSubmission(), LayoutOptions{Exists: existsIn()})
	b, ok := l.Block(BlockParticipants)
	require.True(t, ok)
	require.Len(t, b.Table.Rows, 3)
	assert.Equal(t, 1, b.Table.HeaderRows)
	assert.Len(t, b.Table.Rows[0].Cells, 18)

	first := b.Table.Rows[1].Cells
	assert.Equal(t, "1", first[0].Text)
	assert.Equal(t, "Juan Perez", first[1].Text)
	assert.Equal(t, CheckMark, first[4].Text) // Fotocheck
	assert.Equal(t, "", first[5].Text)        // Uniforme
	assert.Equal(t, CheckMark, first[6].Text) // Casco

	// Подпись не найдена на диске
	assert.Empty(t, first[17].Image)
	assert.Equal(t, signaturePlaceholder, first[17].Text)

	second := b.Table.Rows[2].Cells
	assert.Equal(t, "2", second[0].Text)
	assert.Equal(t, "Ana Ramos", second[1].Text)
	for i := 4; i < 16; i++ {
		assert.Empty(t, second[i].Text)
	}
}

func TestSignatureImageWhenPresent(t *testing.T) {
	l := BuildLayout(sampleSubmission(), LayoutOptions{Exists: existsIn("temp/firma1.png")})
	b, _ := l.Block(BlockParticipants)
	sig := b.Table.Rows[1].Cells[17]
	assert.Equal(t, "temp/firma1.png", sig.Image)
	assert.Equal(t, 26.0, sig.ImageWidth)
	assert.Equal(t, 12.0, sig.ImageHeight)
}

func TestVerticalLabelsAreMarkup(t *testing.T) {
	l := BuildLayout(sampleSubmission(), LayoutOptions{Exists: existsIn()})
	b, _ := l.Block(BlockParticipants)
	h := b.Table.Rows[0].Cells[10]
	assert.True(t, h.Markup)
	assert.Equal(t, "G<br/>u<br/>a<br/>n<br/>t<br/>e<br/>s<br/>D<br/>i<br/>e<br/>l<br/>e<br/>c<br/>t<br/>r<br/>i<br/>c<br/>o<br/>s", h.Text)
}

func TestUserTextIsEscaped(t *testing.T) {
	l := BuildLayout(sampleSubmission(), LayoutOptions{Exists: existsIn()})
	b, _ := l.Block(BlockRecommendations)
	c := b.Table.Rows[0].Cells[0]
	assert.False(t, c.Markup)
	assert.Equal(t, "Mantener &lt;br/&gt; orden &amp; limpieza", c.Text)
	assert.Equal(t, []string{"Mantener <br/> orden & limpieza"}, markupLines(c.Text))
}

func TestRiskMatrixRows(t *testing.T) {
	l := BuildLayout(sampleSubmission(), LayoutOptions{Exists: existsIn()})
	b, _ := l.Block(BlockRiskMatrix)
	require.Len(t, b.Table.Rows, 3)
	assert.Equal(t, "Caída de altura", b.Table.Rows[1].Cells[1].Text)
	assert.Equal(t, "Contacto eléctrico", b.Table.Rows[2].Cells[1].Text)
	for _, r := range b.Table.Rows[1:] {
		assert.Equal(t, "", r.Cells[5].Text)
		assert.Equal(t, "X", r.Cells[6].Text)
		assert.Equal(t, "", r.Cells[7].Text)
	}
}

func TestRiskMatrixSentinel(t *testing.T) {
	sub := sampleSubmission()
	sub.Hazards = nil
	l := BuildLayout(sub, LayoutOptions{Exists: existsIn()})
	b, _ := l.Block(BlockRiskMatrix)
	require.Len(t, b.Table.Rows, 2)
	assert.Equal(t, types.NoHazards, b.Table.Rows[1].Cells[1].Text)
}

func TestPhotoBlock(t *testing.T) {
	t.Run("absent without photos", func(t *testing.T) {
		sub := sampleSubmission()
		l := BuildLayout(sub, LayoutOptions{Exists: existsIn()})
		_, ok := l.Block(BlockPhotos)
		assert.False(t, ok)
		assert.NotContains(t, l.Kinds(), BlockPhotos)
	})

	t.Run("individual photos only", func(t *testing.T) {
		sub := sampleSubmission()
		sub.GeneralPhotoPath = "temp/general.jpg"
		l := BuildLayout(sub, LayoutOptions{Exists: existsIn("temp/foto1.jpg", "temp/general.jpg")})
		b, ok := l.Block(BlockPhotos)
		require.True(t, ok)
		require.Len(t, b.Table.Rows, 2)
		assert.Equal(t, "temp/foto1.jpg", b.Table.Rows[1].Cells[1].Image)
	})

	t.Run("general photo applied to everyone", func(t *testing.T) {
		sub := sampleSubmission()
		sub.GeneralPhotoPath = "temp/general.jpg"
		l := BuildLayout(sub, LayoutOptions{Exists: existsIn("temp/general.jpg")})
		b, ok := l.Block(BlockPhotos)
		require.True(t, ok)
		require.Len(t, b.Table.Rows, 3)
		assert.Equal(t, "Juan Perez", b.Table.Rows[1].Cells[0].Text)
		assert.Equal(t, "Ana Ramos", b.Table.Rows[2].Cells[0].Text)
		assert.Equal(t, "temp/general.jpg", b.Table.Rows[2].Cells[1].Image)
	})
}

func TestGeneralDataFallbacks(t *testing.T) {
	sub := sampleSubmission()
	sub.Contractor = "   "
	sub.Area = ""
	l := BuildLayout(sub, LayoutOptions{Exists: existsIn()})
	b, _ := l.Block(BlockGeneralData)
	assert.Equal(t, "CICSA PERU S.A.C.", b.Table.Rows[0].Cells[1].Text)
	assert.Equal(t, "CICSA PERU S.A.C.", b.Table.Rows[0].Cells[3].Text)
	assert.Equal(t, "MRD F.O.", b.Table.Rows[2].Cells[3].Text)
	assert.Equal(t, "Tendido de fibra", b.Table.Rows[1].Cells[1].Text)
}

func TestBriefingUsesActivity(t *testing.T) {
	l := BuildLayout(sampleSubmission(), LayoutOptions{Exists: existsIn()})
	b, _ := l.Block(BlockBriefing)
	assert.Equal(t, "Riesgo eléctrico", b.Table.Rows[0].Cells[1].Text)
	assert.Equal(t, 4, b.Table.Rows[1].Cells[0].Span)
	assert.Equal(t, "Tendido de fibra", b.Table.Rows[2].Cells[1].Text)
	assert.Equal(t, "Av. Arequipa 123", b.Table.Rows[2].Cells[3].Text)
}

func TestLegendVerbatim(t *testing.T) {
	l := BuildLayout(sampleSubmission(), LayoutOptions{Exists: existsIn()})
	b, _ := l.Block(BlockLegend)
	require.Len(t, b.Paragraphs, 3)
	assert.Equal(t, "B: RIESGO TOLERABLE", b.Paragraphs[2].Text)
}

func TestBuildLayoutDeterministic(t *testing.T) {
	opts := LayoutOptions{Exists: existsIn("temp/foto1.jpg")}
	assert.Equal(t, BuildLayout(sampleSubmission(), opts), BuildLayout(sampleSubmission(), opts))
}
