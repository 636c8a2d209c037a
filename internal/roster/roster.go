// Package roster parses class-list CSV files locally so adapters can
// validate and preview a roster before uploading the raw text to the service.
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Entry is one normalized roster row.
type Entry struct {
	StudentID string `validate:"required"`
	Name      string `validate:"required"`
	MAC       string
}

// Result is a parsed roster: the valid entries plus a count of rows skipped
// for missing a name or id.
type Result struct {
	Entries []Entry
	Skipped int
}

var validate = validator.New()

// Parse reads a roster CSV. Two header layouts are accepted,
// case-insensitively: "Name" with "Student ID", or "first_name"/"last_name"
// with "student_id". A MAC column is optional under any header containing
// "mac".
func Parse(r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("roster has no header row: %w", err)
	}
	cols := indexColumns(header)

	var res Result
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("invalid csv: %w", err)
		}
		entry := cols.entry(row)
		if verr := validate.Struct(entry); verr != nil {
			res.Skipped++
			continue
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

// Load reads and parses a roster file, returning the raw text as well so the
// caller can upload it unchanged.
func Load(path string) (Result, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, "", err
	}
	res, err := Parse(strings.NewReader(string(raw)))
	if err != nil {
		return Result{}, "", err
	}
	return res, string(raw), nil
}

type columns struct {
	name  int
	first int
	last  int
	id    int
	mac   int
}

func indexColumns(header []string) columns {
	c := columns{name: -1, first: -1, last: -1, id: -1, mac: -1}
	for i, h := range header {
		switch key := strings.ToLower(strings.TrimSpace(h)); {
		case key == "name" || key == "full_name" || key == "full name":
			c.name = i
		case key == "first_name" || key == "first name":
			c.first = i
		case key == "last_name" || key == "last name":
			c.last = i
		case key == "student id" || key == "student_id" || key == "studentid" || key == "id":
			c.id = i
		case strings.Contains(key, "mac"):
			c.mac = i
		}
	}
	return c
}

func (c columns) entry(row []string) Entry {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	name := get(c.name)
	if name == "" && (c.first >= 0 || c.last >= 0) {
		name = strings.TrimSpace(get(c.first) + " " + get(c.last))
	}
	return Entry{
		StudentID: get(c.id),
		Name:      name,
		MAC:       get(c.mac),
	}
}
