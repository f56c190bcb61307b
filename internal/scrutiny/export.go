package scrutiny

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// exportHeader is the column layout shared by every export format.
var exportHeader = []string{
	"role_code", "role_title", "candidate_number", "candidate_name",
	"votes", "role_blank_votes", "role_total_votes",
}

// exportRows flattens a summary into one row per candidate plus one
// BLANK row per role.  The order is inherited from the summary, which
// is already deterministic.
func exportRows(s Summary) [][]string {
	var rows [][]string
	for _, role := range s.Roles {
		for _, c := range role.Candidates {
			rows = append(rows, []string{
				role.Code, role.Title,
				strconv.FormatUint(uint64(c.Number), 10), c.Name,
				strconv.FormatInt(c.Votes, 10),
				strconv.FormatInt(role.BlankVotes, 10),
				strconv.FormatInt(role.TotalVotes, 10),
			})
		}
		rows = append(rows, []string{
			role.Code, role.Title, "", "BLANK",
			strconv.FormatInt(role.BlankVotes, 10),
			strconv.FormatInt(role.BlankVotes, 10),
			strconv.FormatInt(role.TotalVotes, 10),
		})
	}
	return rows
}

// WriteCSV renders the summary as CSV.
func WriteCSV(w io.Writer, s Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range exportRows(s) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders the summary as a single-sheet XLSX workbook.
func WriteXLSX(w io.Writer, s Summary) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Scrutiny"
	f.SetSheetName("Sheet1", sheet)

	for col, h := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for i, row := range exportRows(s) {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

// WritePDF renders the summary as a simple tabular PDF, one section per
// role.
func WritePDF(w io.Writer, s Summary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Scrutiny - %s", s.ProcessName), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("Scrutiny summary: %s", s.ProcessName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total votes: %d", s.TotalVotes), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, role := range s.Roles {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s (%s)", role.Title, role.Code), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(20, 6, "Number", "1", 0, "C", false, 0, "")
		pdf.CellFormat(90, 6, "Candidate", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, "Votes", "1", 1, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, c := range role.Candidates {
			pdf.CellFormat(20, 6, strconv.FormatUint(uint64(c.Number), 10), "1", 0, "C", false, 0, "")
			pdf.CellFormat(90, 6, c.Name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, strconv.FormatInt(c.Votes, 10), "1", 1, "R", false, 0, "")
		}
		pdf.CellFormat(20, 6, "", "1", 0, "C", false, 0, "")
		pdf.CellFormat(90, 6, "BLANK", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, strconv.FormatInt(role.BlankVotes, 10), "1", 1, "R", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(110, 6, "Total", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, strconv.FormatInt(role.TotalVotes, 10), "1", 1, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.Ln(4)
	}
	return pdf.Output(w)
}
