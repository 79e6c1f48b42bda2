package showcurves

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/CruiseDevice/sbhsd"
	"github.com/CruiseDevice/sbhsd/sbhs"
	"github.com/go-analyze/charts"
	"github.com/mattn/go-sixel"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var cpath string
	var resolution int

	cmd := &cobra.Command{
		Use:   "show-curves",
		Short: "Show the fan curve of each board",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := sbhsd.Load(cpath)
			if err != nil {
				return err
			}

			shaper := sbhsd.NewCurveShaper(cfg)
			boards := cfg.Boards()

			var maxT int
			for _, b := range boards {
				for _, p := range b.CurvePointsYAML {
					for _, t := range p {
						maxT = max(maxT, t)
					}
				}
			}
			maxT = max(maxT, 100) // Defaults to 100°C which leads to better x-axis values.

			//
			// Compute points
			//

			series := map[sbhs.USB]charts.LineSeries{}
			decimals := 10 // Boards report one decimal.

			for usb, b := range boards {
				if !shaper.Has(usb) {
					continue
				}

				ls := charts.LineSeries{Name: b.Label}
				for t := range maxT + 1 {
					for decimal := range decimals {
						temperature := float64(t) + float64(decimal)/float64(decimals)
						if temperature == 0 {
							temperature = 0.01 // 0.0 means a failed read for the shaper.
						}

						evals := shaper.Eval([]sbhsd.Reading{{USB: usb, Temperature: temperature}})
						ls.Values = append(ls.Values, float64(evals[usb].Fan))
					}
				}
				series[usb] = ls
			}

			if len(series) == 0 {
				fmt.Println("No curve_points configured")
				return nil
			}

			//
			// Render charts
			//

			for _, usb := range slices.Sorted(maps.Keys(series)) {
				opt := charts.NewLineChartOptionWithSeries(charts.LineSeriesList{series[usb]})
				opt.Theme = charts.GetTheme(charts.ThemeVividDark)
				opt.Padding = charts.NewBox(20, 20, 20, 20)
				opt.Title.Text = fmt.Sprintf("%s: %s", usb, boards[usb].Label)
				opt.Title.FontStyle.FontSize = 16
				opt.Title.Offset = charts.OffsetLeft
				opt.Legend = charts.LegendOption{
					Show:    sbhsd.ToPtr(true),
					Offset:  charts.OffsetCenter,
					Padding: charts.NewBox(0, 0, 0, 20),
				}
				opt.Symbol = charts.SymbolNone
				opt.LineStrokeWidth = 2
				opt.StrokeSmoothingTension = 1
				opt.XAxis.Show = sbhsd.ToPtr(true)
				opt.XAxis.Title = "°C"
				opt.XAxis.Labels = []string{} // Reset
				for t := range maxT + 1 {
					for range decimals {
						// Same label for all decimals of a degree, works well with LabelCount.
						opt.XAxis.Labels = append(opt.XAxis.Labels, strconv.Itoa(t))
					}
				}
				opt.XAxis.LabelCount = maxT / 10
				opt.YAxis = []charts.YAxisOption{
					{
						Show:                   sbhsd.ToPtr(true),
						Title:                  "fan %",
						Min:                    sbhsd.ToPtr(float64(0)),
						Max:                    sbhsd.ToPtr(float64(100)),
						RangeValuePaddingScale: sbhsd.ToPtr(float64(0)),
						Unit:                   10,
					},
				}
				p := charts.NewPainter(charts.PainterOptions{
					OutputFormat: charts.ChartOutputPNG,
					Width:        resolution,
					Height:       int(float64(resolution) / (16.0 / 9.0)),
				})

				err := p.LineChart(opt)
				if err != nil {
					return fmt.Errorf("%s: %w", usb, err)
				}

				mPNG, err := p.Bytes()
				if err != nil {
					return fmt.Errorf("%s: %w", usb, err)
				}

				m, _, err := image.Decode(bytes.NewReader(mPNG))
				if err != nil {
					return fmt.Errorf("%s: %w", usb, err)
				}

				codec := sixel.NewEncoder(os.Stdout)
				err = codec.Encode(m)
				if err != nil {
					return fmt.Errorf("%s: %w", usb, err)
				}
			}

			return nil
		},
	}
	cmd.Flags().StringVarP(&cpath, "config", "c", "/etc/sbhsd/sbhsd.yml", "Configfile path")
	cmd.Flags().IntVarP(&resolution, "resolution", "r", 1000, "The width size in pixel of each graph")

	return cmd
}
