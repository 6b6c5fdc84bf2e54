package pdf

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shokudev/kura/internal/core/domain"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	pages    int
	pageText map[int]string
	pageErr  map[int]error
	infoErr  error
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	switch name {
	case "pdfinfo":
		if m.infoErr != nil {
			return nil, m.infoErr
		}
		return []byte(fmt.Sprintf("Title: test\nPages:          %d\n", m.pages)), nil
	case "pdftotext":
		var page int
		fmt.Sscanf(args[1], "%d", &page)
		if err := m.pageErr[page]; err != nil {
			return nil, err
		}
		return []byte(m.pageText[page]), nil
	}
	return nil, fmt.Errorf("unexpected command %s", name)
}

func TestExtensions(t *testing.T) {
	e := New()
	assert.Equal(t, []string{"pdf"}, e.Extensions())
}

func TestExtract_PageMarkers(t *testing.T) {
	e := NewWithRunner(&mockRunner{
		pages: 2,
		pageText: map[int]string{
			1: "試作概要\n",
			2: "官能評価の結果は良好。",
		},
	})

	text, structured, err := e.Extract(context.Background(), []byte("%PDF-1.7"), "report.pdf")

	require.NoError(t, err)
	assert.Equal(t, "[ページ 1]\n試作概要\n[ページ 2]\n官能評価の結果は良好。", text)

	require.Len(t, structured.Pages, 2)
	assert.Equal(t, 1, structured.Pages[0].Number)
	assert.Equal(t, "試作概要", structured.Pages[0].Content)
	assert.Equal(t, "官能評価の結果は良好。", structured.Pages[1].Content)
}

func TestExtract_FailedPageYieldsEmptyContent(t *testing.T) {
	e := NewWithRunner(&mockRunner{
		pages: 3,
		pageText: map[int]string{
			1: "一頁",
			3: "三頁",
		},
		pageErr: map[int]error{
			2: errors.New("exit status 1"),
		},
	})

	text, structured, err := e.Extract(context.Background(), []byte("%PDF-1.7"), "scan.pdf")

	require.NoError(t, err)
	assert.Equal(t, "[ページ 1]\n一頁\n[ページ 2]\n[ページ 3]\n三頁", text)

	require.Len(t, structured.Pages, 3)
	assert.Equal(t, "", structured.Pages[1].Content)
}

func TestExtract_InfoFailure(t *testing.T) {
	e := NewWithRunner(&mockRunner{infoErr: errors.New("exec: pdfinfo not found")})

	_, _, err := e.Extract(context.Background(), []byte("%PDF-1.7"), "x.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_MissingPageCount(t *testing.T) {
	e := NewWithRunner(&mockRunner{pages: 0, infoErr: nil})

	_, _, err := e.Extract(context.Background(), []byte("%PDF-1.7"), "x.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}
