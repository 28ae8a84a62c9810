package view

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/factura/internal/money"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0,00 €", FormatAmount(0))
	assert.Equal(t, "413,22 €", FormatAmount(41322))
	assert.Equal(t, "1.234,56 €", FormatAmount(money.Cents(123456)))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2026-01-15", FormatDate(time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)))
}

func TestCommonModel_Resize(t *testing.T) {
	var c CommonModel

	assert.Equal(t, 30, c.Resize(tea.WindowSizeMsg{Width: 120, Height: 40}))
	assert.Equal(t, 120, c.Width)
	assert.Equal(t, 40, c.Height)

	assert.Equal(t, 3, c.Resize(tea.WindowSizeMsg{Width: 20, Height: 5}))
}
