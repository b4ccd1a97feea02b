package core

import (
	"os"

	"github.com/fatih/color"
	"github.com/josephlewis42/rush/core/config"
	"github.com/mattn/go-isatty"
)

var (
	ColorBoldBlue  = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
	ColorBoldRed   = color.New(color.FgRed, color.Bold)
)

// ColorPrinter decides whether output to a file is colorized.
type ColorPrinter struct {
	// Mode is one of config.ColorAlways, config.ColorAuto or config.ColorNever.
	Mode string
	Out  *os.File
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (c *ColorPrinter) ShouldColor() bool {
	switch c.Mode {
	case config.ColorNever:
		return false
	case config.ColorAlways:
		return true
	default:
		return IsTerminal(c.Out)
	}
}

// Sprint formats a using col if the output should be colorized.
func (c *ColorPrinter) Sprint(col *color.Color, a ...interface{}) string {
	out := *col
	if c.ShouldColor() {
		out.EnableColor()
	} else {
		out.DisableColor()
	}
	return out.Sprint(a...)
}
