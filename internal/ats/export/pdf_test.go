package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicsa-sst/ats/internal/ats/types"
)

var fixedNow = time.Date(2024, 5, 10, 14, 3, 9, 0, time.UTC)

func writeTestImage(t *testing.T, path string, asJPEG bool) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 30))
	for x := 0; x < 60; x++ {
		img.Set(x, 15, color.RGBA{0, 0, 0, 255})
	}
	var buf bytes.Buffer
	if asJPEG {
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	} else {
		require.NoError(t, png.Encode(&buf, img))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "ATS_20240510_140309.pdf", FileName(fixedNow))
}

func TestRenderWithImages(t *testing.T) {
	dir := t.TempDir()
	sig := filepath.Join(dir, "firma.png")
	photo := filepath.Join(dir, "foto.jpg")
	general := filepath.Join(dir, "general.jpg")
	broken := filepath.Join(dir, "broken.png")
	writeTestImage(t, sig, false)
	writeTestImage(t, photo, true)
	writeTestImage(t, general, true)
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o644))

	sub := sampleSubmission()
	sub.Participants[0].SignaturePath = sig
	sub.Participants[0].PhotoPath = photo
	sub.Participants[1].SignaturePath = broken
	sub.GeneralPhotoPath = general

	r := NewRenderer(LayoutOptions{}, func() time.Time { return fixedNow }, nil)
	doc, err := r.Render(sub)
	require.NoError(t, err)

	assert.Equal(t, "ATS_20240510_140309.pdf", doc.Name)
	assert.Equal(t, fixedNow, doc.CreatedAt)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))

	for _, p := range []string{sig, photo, general, broken} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
}

func TestRenderMissingImages(t *testing.T) {
	var cleaned []string
	sub := sampleSubmission()
	sub.GeneralPhotoPath = "does/not/exist.jpg"

	r := NewRenderer(LayoutOptions{}, func() time.Time { return fixedNow }, func(paths ...string) {
		cleaned = append(cleaned, paths...)
	})
	doc, err := r.Render(sub)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
	assert.ElementsMatch(t, []string{"does/not/exist.jpg", "temp/firma1.png", "temp/foto1.jpg"}, cleaned)
}

func TestRenderPaginatesLongTables(t *testing.T) {
	sub := sampleSubmission()
	sub.Hazards = nil
	for i := 0; i < 120; i++ {
		sub.Hazards = append(sub.Hazards, fmt.Sprintf("Peligro número %d con descripción extensa para forzar el salto de página", i+1))
	}

	r := NewRenderer(LayoutOptions{}, func() time.Time { return fixedNow }, func(...string) {})
	doc, err := r.Render(sub)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
	// /Type /Pages + минимум две /Type /Page
	assert.Greater(t, bytes.Count(doc.Data, []byte("/Type /Page")), 2)
}

func TestRenderEmptySubmission(t *testing.T) {
	r := NewRenderer(LayoutOptions{}, func() time.Time { return fixedNow }, func(...string) {})
	doc, err := r.Render(types.Submission{})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Data)
}

func TestRenderDeterministic(t *testing.T) {
	r := NewRenderer(LayoutOptions{}, func() time.Time { return fixedNow }, func(...string) {})
	first, err := r.Render(sampleSubmission())
	require.NoError(t, err)
	second, err := r.Render(sampleSubmission())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first.Data, second.Data))
}

func TestRenderRejectsRowTallerThanPage(t *testing.T) {
	r := NewRenderer(LayoutOptions{}, func() time.Time { return fixedNow }, func(...string) {})

	t.Run("observation", func(t *testing.T) {
		sub := sampleSubmission()
		sub.Participants[0].Observation = strings.Repeat("obs ", 900)
		_, err := r.Render(sub)
		assert.True(t, errors.Is(err, ErrRowTooTall), "err: %v", err)
	})

	t.Run("recommendations", func(t *testing.T) {
		sub := sampleSubmission()
		sub.Recommendations = strings.Repeat("texto ", 15500)
		_, err := r.Render(sub)
		assert.True(t, errors.Is(err, ErrRowTooTall), "err: %v", err)
	})
}

// Самый широкий глиф на предельной длине полей формы
func TestRenderMaxLengthFieldsFit(t *testing.T) {
	wide := func(n int) string { return strings.Repeat("WWWW ", n/5) }

	sub := sampleSubmission()
	sub.Activity = wide(types.MaxTextFieldLength)
	sub.Location = wide(types.MaxTextFieldLength)
	sub.BriefingTopic = wide(types.MaxTextFieldLength)
	sub.BriefingPresenter = wide(types.MaxTextFieldLength)
	sub.Hazards = []string{wide(types.MaxTextFieldLength), wide(types.MaxTextFieldLength)}
	sub.Recommendations = wide(types.MaxRecommendationsLength)
	sub.Participants = append(sub.Participants, types.Participant{ItemNumber: 2, Name: "Luis Soto"})
	for i := range sub.Participants {
		sub.Participants[i].Observation = wide(types.MaxObservationLength)
	}

	r := NewRenderer(LayoutOptions{}, func() time.Time { return fixedNow }, func(...string) {})
	_, err := r.Render(sub)
	require.NoError(t, err)
}

// pageContents содержимое потоков несжатого PDF по порядку.
func pageContents(data []byte) []string {
	var res []string
	for _, chunk := range strings.Split(string(data), "endstream") {
		if i := strings.LastIndex(chunk, "stream"); i >= 0 {
			res = append(res, chunk[i:])
		}
	}
	return res
}

func TestRenderRepeatsTableHeaders(t *testing.T) {
	sub := sampleSubmission()
	sub.Hazards = nil
	for i := 0; i < 120; i++ {
		sub.Hazards = append(sub.Hazards, fmt.Sprintf("Peligro %03d con descripcion extensa para forzar el salto de pagina", i+1))
	}
	sub.Participants = nil
	for i := 0; i < 40; i++ {
		sub.Participants = append(sub.Participants, types.Participant{ItemNumber: i + 1, Name: fmt.Sprintf("Tecnico %02d", i+1)})
	}

	var buf bytes.Buffer
	require.NoError(t, writeLayout(BuildLayout(sub, LayoutOptions{}), fixedNow, &buf, false))

	cases := []struct {
		name   string
		row    string
		header string
	}{
		{"participants", "(Tecnico ", "(Observaciones)"},
		{"risk matrix", "(Peligro ", "(MEDIDAS DE CONTROL)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pages := 0
			for _, content := range pageContents(buf.Bytes()) {
				if !strings.Contains(content, tc.row) {
					continue
				}
				pages++
				assert.Equal(t, 1, strings.Count(content, tc.header), "page %d", pages)
			}
			assert.GreaterOrEqual(t, pages, 2)
		})
	}
}
