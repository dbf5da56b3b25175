// Package viz renders solves for the terminal: asciigraph charts of
// trajectories and cost histories, braille phase plots, lipgloss-styled
// solve summaries, and a bubbletea live view of a running optimization.
package viz
