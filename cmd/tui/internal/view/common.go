package view

import (
	tea "github.com/charmbracelet/bubbletea"
)

// chrome is the number of terminal lines taken by titles, padding and help
// around a view's main widget.
const chrome = 10

// CommonModel tracks the terminal size shared by every view.
type CommonModel struct {
	Width  int
	Height int
}

// Resize records msg and returns the height left for a view's main widget.
func (c *CommonModel) Resize(msg tea.WindowSizeMsg) int {
	c.Width = msg.Width
	c.Height = msg.Height

	return max(msg.Height-chrome, 3)
}

// BackMsg asks the root model to return to the menu.
type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}
