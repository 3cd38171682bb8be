package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"studio/internal/workstation"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderGenerations(records []workstation.GenerationRecord) string {
	if len(records) == 0 {
		return "No generations for this shot yet."
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		mode := ""
		if rec.RefData != nil {
			mode = string(rec.RefData.Mode)
		}
		outcome := rec.ImageURL
		if rec.ErrorMessage != "" {
			outcome = rec.ErrorMessage
		}
		rows = append(rows, []string{
			rec.ID,
			mode,
			string(rec.Status),
			truncate(rec.Prompt, 48),
			rec.CreatedAt.Local().Format(time.DateTime),
			outcome,
		})
	}
	return renderTable(
		[]string{"ID", "Mode", "Status", "Prompt", "Created", "Image / Error"},
		rows,
		nil,
	)
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func isTerminal(stream any) bool {
	file, ok := stream.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// promptConfirmer asks on the terminal. Without a terminal it refuses
// unless assumeYes is set.
type promptConfirmer struct {
	in        io.Reader
	out       io.Writer
	assumeYes bool
}

func (p promptConfirmer) Confirm(message string) bool {
	if p.assumeYes {
		return true
	}
	if !isTerminal(p.in) {
		fmt.Fprintln(p.out, "Refusing to continue without a terminal; pass --yes to confirm.")
		return false
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", message)
	var answer string
	if _, err := fmt.Fscanln(p.in, &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
