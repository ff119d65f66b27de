package ocr

import (
	"regexp"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// two or more spaces, or any tab, separate table cells in layout output
var reCellSep = regexp.MustCompile(` {2,}|\t+`)

func splitCells(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return reCellSep.Split(line, -1)
}

// TablesToMarkdown rewrites runs of at least two consecutive column-aligned
// lines (two or more cells each) as markdown tables. The first line of a
// run becomes the header row. Other lines pass through untouched.
func TablesToMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		j := i
		for j < len(lines) && len(splitCells(lines[j])) >= 2 {
			j++
		}
		switch {
		case j-i >= 2:
			if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
				out = append(out, "")
			}
			out = append(out, renderTable(lines[i:j])...)
			if j < len(lines) && strings.TrimSpace(lines[j]) != "" {
				out = append(out, "")
			}
			i = j
		case j > i:
			out = append(out, lines[i:j]...)
			i = j
		default:
			out = append(out, lines[i])
			i++
		}
	}
	return strings.Join(out, "\n")
}

func renderTable(rows []string) []string {
	cells := make([][]string, len(rows))
	width := 0
	for i, r := range rows {
		cells[i] = splitCells(r)
		if len(cells[i]) > width {
			width = len(cells[i])
		}
	}
	for i := range cells {
		for len(cells[i]) < width {
			cells[i] = append(cells[i], "")
		}
		for k, c := range cells[i] {
			cells[i][k] = strings.ReplaceAll(c, "|", `\|`)
		}
	}

	var b strings.Builder
	tw := tablewriter.NewWriter(&b)
	tw.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	tw.SetCenterSeparator("|")
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetHeader(cells[0])
	tw.AppendBulk(cells[1:])
	tw.Render()
	return strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
}
