package scraper

import (
	"errors"
	"testing"

	"inventory-export/internal/product"

	"github.com/stretchr/testify/require"
)

func TestExtractRow(t *testing.T) {
	rec, err := ExtractRow(`<tr class="row">
		<td> 17 </td><td>$4.20</td><td>SKU-17</td>
		<td><span>Blue,</span> <b>large</b></td>
		<td>Caf&eacute; Mug</td><td>10 x 8 x 8</td><td>0.35</td><td>Kitchen</td>
	</tr>`)
	require.NoError(t, err)
	require.Equal(t, product.Record{
		ItemNo:     "17",
		Cost:       "$4.20",
		SKU:        "SKU-17",
		Details:    "Blue, large",
		Product:    "Café Mug",
		Dimensions: "10 x 8 x 8",
		Weight:     "0.35",
		Type:       "Kitchen",
	}, rec)
}

func TestExtractRowIgnoresNestedCells(t *testing.T) {
	rec, err := ExtractRow(`<tr><td>1</td><td>2</td><td>3</td>
		<td><table><tr><td>a</td><td>b</td></tr></table></td>
		<td>5</td><td>6</td><td>7</td><td>8</td></tr>`)
	require.NoError(t, err)
	require.Equal(t, "ab", rec.Details)
	require.Equal(t, "8", rec.Type)
}

func TestExtractRowMalformed(t *testing.T) {
	cases := []string{
		"",
		`<tr><td>loading...</td></tr>`,
		`<tr><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td><td>6</td><td>7</td></tr>`,
		`<tr><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td><td>6</td><td>7</td><td>8</td><td>9</td></tr>`,
	}
	for _, html := range cases {
		_, err := ExtractRow(html)
		var malformed *MalformedRowError
		require.True(t, errors.As(err, &malformed), "html: %q", html)
		var countErr *product.CellCountError
		require.True(t, errors.As(err, &countErr))
	}
}
