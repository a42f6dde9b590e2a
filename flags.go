package he3spectra

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

var _ pflag.Value = (*BinEdges)(nil)

// BinEdges collects repeated or comma-separated float values into a sorted
// list of histogram bin edges. It implements pflag.Value.
type BinEdges struct {
	Edges   []float64
	beenSet bool
}

func (f *BinEdges) Set(valueStr string) error {
	if !f.beenSet {
		f.beenSet = true
		f.Edges = nil
	}

	for _, field := range strings.Split(valueStr, ",") {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return err
		}
		f.Edges = append(f.Edges, value)
	}
	sort.Float64s(f.Edges)
	return nil
}

func (f *BinEdges) String() string {
	return fmt.Sprint(f.Edges)
}

func (f *BinEdges) Type() string {
	return "binEdges"
}
