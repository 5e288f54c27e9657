package output

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/chriskillpack/imgcap"
	"github.com/mitchellh/colorstring"
	"github.com/mitchellh/go-wordwrap"
	"github.com/rivo/uniseg"
)

const defaultWidth = 80

type PrettyOptions struct {
	Color bool // emit ANSI styling
	Width int  // console width in cells, 0 means 80
}

// Pretty prints each result as a bordered panel holding the file's base name
// and its caption, as soon as it arrives.
type Pretty struct {
	w     io.Writer
	c     colorstring.Colorize
	width int
}

var _ imgcap.Sink = &Pretty{}

func NewPretty(w io.Writer, opts PrettyOptions) *Pretty {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}

	return &Pretty{
		w:     w,
		c:     colorizer(opts.Color),
		width: width,
	}
}

func (p *Pretty) Begin(total int) error { return nil }

func (p *Pretty) Emit(res imgcap.Result) error {
	_, err := io.WriteString(p.w, p.panel(filepath.Base(res.Path), res.Caption))
	return err
}

func (p *Pretty) End() error { return nil }

type panelLine struct {
	text string
	bold bool
}

func (p *Pretty) panel(title, body string) string {
	// Two border cells and one cell of padding on either side
	inner := max(p.width-4, 1)

	lines := []panelLine{{text: title, bold: true}, {}}
	for _, l := range strings.Split(wordwrap.WrapString(body, uint(inner)), "\n") {
		lines = append(lines, panelLine{text: l})
	}

	content := 0
	for _, l := range lines {
		content = max(content, uniseg.StringWidth(l.text))
	}

	rule := strings.Repeat("─", content+2)
	side := p.c.Color("[cyan]│[reset]")

	sb := strings.Builder{}
	sb.WriteString(p.c.Color("[cyan]╭" + rule + "╮[reset]"))
	sb.WriteString("\n")
	for _, l := range lines {
		sb.WriteString(side)
		sb.WriteString(" ")
		if l.bold {
			sb.WriteString(p.c.Color("[bold]"))
			sb.WriteString(l.text)
			sb.WriteString(p.c.Color("[reset]"))
		} else {
			sb.WriteString(l.text)
		}
		sb.WriteString(strings.Repeat(" ", content-uniseg.StringWidth(l.text)))
		sb.WriteString(" ")
		sb.WriteString(side)
		sb.WriteString("\n")
	}
	sb.WriteString(p.c.Color("[cyan]╰" + rule + "╯[reset]"))
	sb.WriteString("\n")

	return sb.String()
}
