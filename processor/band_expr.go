package processor

import (
	"fmt"
	"math"
	"sort"

	goeval "github.com/edisonguo/govaluate"
	"github.com/pkg/errors"
)

// BandExpression is a per pixel arithmetic expression over named
// bands, e.g. "(B8A - B05) / (B8A + B05)".
type BandExpression struct {
	Expr  string
	Bands []string
	expr  *goeval.EvaluableExpression
}

func ParseBandExpression(expr string) (*BandExpression, error) {
	parsed, err := goeval.NewEvaluableExpression(expr)
	if err != nil {
		return nil, errors.Wrapf(ErrValidation, "band expression %q: %v", expr, err)
	}

	seen := make(map[string]bool)
	var bands []string
	for _, token := range parsed.Tokens() {
		if token.Kind != goeval.VARIABLE {
			continue
		}
		name, ok := token.Value.(string)
		if !ok {
			return nil, errors.Wrapf(ErrValidation, "variable token '%v' failed to cast string", token.Value)
		}
		if !seen[name] {
			seen[name] = true
			bands = append(bands, name)
		}
	}
	if len(bands) == 0 {
		return nil, errors.Wrapf(ErrValidation, "band expression %q references no band", expr)
	}
	sort.Strings(bands)

	return &BandExpression{Expr: expr, Bands: bands, expr: parsed}, nil
}

// Evaluate computes the expression for every pixel of the co-registered
// single band coverages in bands. A pixel whose evaluation fails or
// does not yield a number is NaN.
func (b *BandExpression) Evaluate(bands map[string]*Coverage) (*Coverage, error) {
	var ref *Coverage
	for _, name := range b.Bands {
		cov, ok := bands[name]
		if !ok {
			return nil, errors.Wrapf(ErrValidation, "band %s of expression %q not provided", name, b.Expr)
		}
		if ref == nil {
			ref = cov
			if ref.Bands != 1 || !ref.Loaded() {
				return nil, errors.Wrapf(ErrIncompatibleRasters, "band %s must be a single band raster in memory", name)
			}
			continue
		}
		if err := checkCompatible(ref, cov); err != nil {
			return nil, err
		}
	}

	out := make([]float64, ref.Width*ref.Height)
	params := make(map[string]interface{}, len(b.Bands))
	for k := range out {
		for _, name := range b.Bands {
			params[name] = bands[name].Data[0][k]
		}
		out[k] = b.evalPixel(params)
	}

	return &Coverage{
		Name:         fmt.Sprintf("expr(%s)", b.Expr),
		Width:        ref.Width,
		Height:       ref.Height,
		Bands:        1,
		Type:         Float32,
		CRS:          ref.CRS,
		GeoTransform: ref.GeoTransform,
		Data:         [][]float64{out},
	}, nil
}

func (b *BandExpression) evalPixel(params map[string]interface{}) float64 {
	res, err := b.expr.Evaluate(params)
	if err != nil {
		return math.NaN()
	}
	v, ok := res.(float64)
	if !ok {
		return math.NaN()
	}
	return float64(float32(v))
}
