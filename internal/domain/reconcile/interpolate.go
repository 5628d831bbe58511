package reconcile

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/pausemap/internal/domain/frame"
	"github.com/okian/pausemap/internal/domain/week"
)

type point struct {
	x float64 // unix seconds
	y float64
}

// curve is sorted by x with unique positions.
type curve []point

// Interpolate estimates every economic series at each target week. Known
// points sit at their period midpoint (or at the instant for time values);
// values between two points are linear on the time axis, values outside the
// known range repeat the nearest point. A series with no known values is null
// for every week. The result has one row per target week.
func (r *Reconciler) Interpolate(economic *frame.Frame, weeks []time.Time) (*frame.Frame, error) {
	series := make(map[string]map[int64][]float64)
	if economic != nil {
		for _, c := range []string{ColPeriod, ColIndicator, ColValue} {
			if !economic.Has(c) {
				return nil, &frame.SchemaError{Table: EconomicTable, Column: c}
			}
		}
		for i := 0; i < economic.Len(); i++ {
			name := seriesName(economic, i)
			if name == "" {
				continue
			}
			obs, ok := series[name]
			if !ok {
				obs = make(map[int64][]float64)
				series[name] = obs
			}
			at, ok := position(economic.Value(i, ColPeriod))
			if !ok {
				continue
			}
			v, ok := economic.Float(i, ColValue)
			if !ok || math.IsNaN(v) {
				continue
			}
			obs[at.Unix()] = append(obs[at.Unix()], v)
		}
	}

	names := make([]string, 0, len(series))
	for n := range series {
		names = append(names, n)
	}
	sort.Strings(names)

	curves := make([]curve, len(names))
	for i, n := range names {
		curves[i] = buildCurve(series[n])
	}

	out := frame.New(EconomicTable, append([]string{ColWeek}, names...)...)
	for _, w := range weeks {
		w = week.Start(w)
		x := float64(w.Unix())
		row := make([]any, 0, len(names)+1)
		row = append(row, w)
		for _, c := range curves {
			row = append(row, c.at(x))
		}
		if err := out.Append(row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func seriesName(f *frame.Frame, row int) string {
	ind, _ := f.String(row, ColIndicator)
	ind = strings.TrimSpace(ind)
	if ind == "" {
		return ""
	}
	if c, ok := f.String(row, ColCountry); ok && strings.TrimSpace(c) != "" {
		return ind + ":" + strings.TrimSpace(c)
	}
	return ind
}

// position places a period cell on the time axis.
func position(v any) (time.Time, bool) {
	switch p := v.(type) {
	case time.Time:
		return p.UTC(), true
	case string:
		period, err := week.ParsePeriod(p)
		if err != nil {
			return time.Time{}, false
		}
		return period.Midpoint(), true
	case float64:
		if p != math.Trunc(p) {
			return time.Time{}, false
		}
		return position(strconv.Itoa(int(p)))
	default:
		return time.Time{}, false
	}
}

func buildCurve(obs map[int64][]float64) curve {
	c := make(curve, 0, len(obs))
	for x, ys := range obs {
		c = append(c, point{x: float64(x), y: Mean(ys)})
	}
	sort.Slice(c, func(i, j int) bool { return c[i].x < c[j].x })
	return c
}

func (c curve) at(x float64) *float64 {
	n := len(c)
	if n == 0 {
		return nil
	}
	var v float64
	switch {
	case x <= c[0].x:
		v = c[0].y
	case x >= c[n-1].x:
		v = c[n-1].y
	default:
		i := sort.Search(n, func(i int) bool { return c[i].x >= x })
		if c[i].x == x {
			v = c[i].y
		} else {
			a, b := c[i-1], c[i]
			v = a.y + (b.y-a.y)*(x-a.x)/(b.x-a.x)
		}
	}
	return &v
}
