package scraper

import (
	"strings"

	"inventory-export/internal/product"

	"github.com/PuerkitoBio/goquery"
)

// ExtractRow turns the outer HTML of one <tr> into a record. Cell texts are
// trimmed and read left to right; only the row's own cells count.
func ExtractRow(rowHTML string) (product.Record, error) {
	// a bare <tr> is dropped by the HTML parser outside of a table
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table><tbody>" + rowHTML + "</tbody></table>"))
	if err != nil {
		return product.Record{}, &MalformedRowError{Err: err}
	}

	cells := []string{}
	doc.Find("tr").First().ChildrenFiltered("td").Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(td.Text()))
	})

	rec, err := product.FromCells(cells)
	if err != nil {
		return product.Record{}, &MalformedRowError{Err: err}
	}
	return rec, nil
}
