package export

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

var companyHeader = []string{"Domain", "Company", "Industry", "Score", "Status", "Website", "Tech Stack", "Description", "Primary Email", "Primary Phone"}

var contactHeader = []string{"Domain", "Company", "Name", "Title", "Email", "Phone", "LinkedIn", "Confidence"}

// XLSX writes a two-sheet workbook (Companies, Contacts) to Path.
type XLSX struct {
	Path string
}

// Name implements Exporter.
func (x XLSX) Name() string { return "xlsx" }

// Export implements Exporter.
func (x XLSX) Export(_ context.Context, leads []Lead) (Result, error) {
	f, err := os.Create(x.Path)
	if err != nil {
		return Result{}, eris.Wrap(err, "xlsx: create file")
	}
	defer f.Close() //nolint:errcheck

	res, err := WriteXLSX(f, leads)
	if err != nil {
		return res, err
	}
	return res, eris.Wrap(f.Close(), "xlsx: close file")
}

// WriteXLSX renders leads as a workbook.
func WriteXLSX(w io.Writer, leads []Lead) (Result, error) {
	file := xlsx.NewFile()
	companies, err := file.AddSheet("Companies")
	if err != nil {
		return Result{}, eris.Wrap(err, "xlsx: add companies sheet")
	}
	contacts, err := file.AddSheet("Contacts")
	if err != nil {
		return Result{}, eris.Wrap(err, "xlsx: add contacts sheet")
	}

	addRow(companies, companyHeader...)
	addRow(contacts, contactHeader...)

	var res Result
	for _, l := range leads {
		c := l.Candidate
		var email, phone string
		if p := l.PrimaryContact(); p != nil {
			email, phone = p.Email, p.Phone
		}
		row := companies.AddRow()
		row.AddCell().SetString(c.Domain)
		row.AddCell().SetString(c.CompanyName)
		row.AddCell().SetString(c.Industry)
		row.AddCell().SetInt(c.Score)
		row.AddCell().SetString(string(c.Status))
		row.AddCell().SetString(c.HomepageURL)
		row.AddCell().SetString(strings.Join(c.TechStack, ", "))
		row.AddCell().SetString(c.Description)
		row.AddCell().SetString(email)
		row.AddCell().SetString(phone)
		res.Companies++

		for _, ct := range l.Contacts {
			row := contacts.AddRow()
			row.AddCell().SetString(c.Domain)
			row.AddCell().SetString(c.CompanyName)
			row.AddCell().SetString(ct.FullName)
			row.AddCell().SetString(ct.Title)
			row.AddCell().SetString(ct.Email)
			row.AddCell().SetString(ct.Phone)
			row.AddCell().SetString(ct.LinkedInURL)
			row.AddCell().SetInt(ct.Confidence)
			res.Contacts++
		}
	}

	if err := file.Write(w); err != nil {
		return res, eris.Wrap(err, "xlsx: write")
	}
	return res, nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
