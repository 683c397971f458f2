// Package ui holds the lipgloss styles shared by the CLI commands.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// RenderPass styles a success marker or message.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderFail styles a failure marker or message.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent styles a highlighted value.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }
