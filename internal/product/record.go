package product

import (
	"fmt"
)

// Headers is the column order of the product table, and the key order of
// every persisted record.
var Headers = []string{
	"item_#",
	"cost",
	"sku",
	"details",
	"product",
	"dimensions",
	"weight_(kg)",
	"type",
}

// Record represents one row of the product table.
// Field order matches Headers so encoding/json keeps the key order.
type Record struct {
	ItemNo     string `json:"item_#"`
	Cost       string `json:"cost"`
	SKU        string `json:"sku"`
	Details    string `json:"details"`
	Product    string `json:"product"`
	Dimensions string `json:"dimensions"`
	Weight     string `json:"weight_(kg)"`
	Type       string `json:"type"`
}

// CellCountError is returned by FromCells when a row does not have exactly
// one cell per header.
type CellCountError struct {
	Got int
}

func (e *CellCountError) Error() string {
	return fmt.Sprintf("expected %d cells, got %d", len(Headers), e.Got)
}

// FromCells zips cell texts, left to right, onto Headers.
func FromCells(cells []string) (Record, error) {
	if len(cells) != len(Headers) {
		return Record{}, &CellCountError{Got: len(cells)}
	}
	return Record{
		ItemNo:     cells[0],
		Cost:       cells[1],
		SKU:        cells[2],
		Details:    cells[3],
		Product:    cells[4],
		Dimensions: cells[5],
		Weight:     cells[6],
		Type:       cells[7],
	}, nil
}
