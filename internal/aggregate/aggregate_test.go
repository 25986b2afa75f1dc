package aggregate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/extraction-service/internal/model"
)

func structured(records ...map[string]any) model.UnitResult {
	return model.UnitResult{
		Output: model.Output{Kind: model.OutputStructured, Records: records},
	}
}

func TestIntegrate_FlattensAcrossUnits(t *testing.T) {
	results := []model.UnitResult{
		structured(map[string]any{"name": "Widget"}, map[string]any{"name": "Gadget"}),
		structured(map[string]any{"name": "Widget"}), // duplicates survive
	}

	res := Integrate(results, "/download/x")

	assert.Equal(t, 3, res.Records)
	assert.Equal(t, []string{"name"}, res.Headers)
	assert.Equal(t, "csv", res.Format)
	assert.Equal(t, "/download/x", res.DownloadURL)

	lines := strings.Split(res.CSV, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "name", lines[0])
	assert.Equal(t, "Widget", lines[1])
	assert.Equal(t, "Gadget", lines[2])
	assert.Equal(t, "Widget", lines[3])
}

func TestIntegrate_SkipsFailedAndRawUnits(t *testing.T) {
	results := []model.UnitResult{
		{URL: "a", Err: "fetch failed"},
		{URL: "b", Output: model.Output{Kind: model.OutputRaw, Raw: "prose"}},
		structured(map[string]any{"name": "Widget"}),
	}

	res := Integrate(results, "")
	assert.Equal(t, 1, res.Records)
}

func TestIntegrate_HeaderUnionSortedAndSparseRowsTolerated(t *testing.T) {
	results := []model.UnitResult{
		structured(map[string]any{"b": "1"}),
		structured(map[string]any{"a": "2", "c": "3"}),
	}

	res := Integrate(results, "")
	assert.Equal(t, []string{"a", "b", "c"}, res.Headers)
	assert.Equal(t, 3, res.Fields)

	lines := strings.Split(res.CSV, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a,b,c", lines[0])
	assert.Equal(t, ",1,", lines[1])
	assert.Equal(t, "2,,3", lines[2])
}

func TestIntegrate_SanitizesDelimitersInValues(t *testing.T) {
	results := []model.UnitResult{
		structured(map[string]any{"desc": "red, shiny\nand new"}),
	}

	res := Integrate(results, "")
	lines := strings.Split(res.CSV, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "red; shiny and new", lines[1])
}

func TestIntegrate_CoercesScalarAndNestedValues(t *testing.T) {
	results := []model.UnitResult{
		structured(map[string]any{
			"count":  float64(12),
			"price":  9.5,
			"active": true,
			"tags":   []any{"a", "b"},
			"absent": nil,
		}),
	}

	res := Integrate(results, "")
	lines := strings.Split(res.CSV, "\n")
	require.Len(t, lines, 2)
	// headers sort: absent,active,count,price,tags
	assert.Equal(t, "absent,active,count,price,tags", lines[0])
	assert.Equal(t, `,true,12,9.5,["a";"b"]`, lines[1])
}

func TestIntegrate_EmptyInput(t *testing.T) {
	res := Integrate(nil, "")
	assert.Equal(t, 0, res.Records)
	assert.Equal(t, 0, res.Fields)
	assert.Empty(t, res.CSV)
	assert.Equal(t, "0 B", res.Size)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "2.0 KB", humanSize(2048))
	assert.Equal(t, "1.5 MB", humanSize(1536*1024))
}
