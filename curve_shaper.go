package sbhsd

import (
	"math"
	"time"

	"github.com/CruiseDevice/sbhsd/sbhs"
)

// A CurveShaper derives fan setpoints from board temperatures.
type CurveShaper struct {
	labels map[sbhs.USB]string
	index  map[sbhs.USB]func(t float64) int
}

func NewCurveShaper(cfg Config) *CurveShaper {
	s := &CurveShaper{
		labels: make(map[sbhs.USB]string),
		index:  make(map[sbhs.USB]func(t float64) int),
	}

	for _, board := range cfg.BoardSettings {
		s.labels[board.USB] = board.Label
		if len(board.CurvePoints) == 0 {
			continue
		}

		// The fan stays at the first setpoint below the first point
		// and goes full speed after the last one.
		points := append([]point{{temperature: 0, fan: board.CurvePoints[0].fan}}, board.CurvePoints...)
		if p := points[len(points)-1]; p.fan < sbhs.MaxSetpoint {
			points = append(points, point{temperature: p.temperature, fan: sbhs.MaxSetpoint})
		}

		segments := make([]segment, 0, len(points)-1)
		for i, p := range points[1:] { // i is previous index and p current point
			segments = append(segments, segment{
				temperature: points[i].temperature,
				eval:        FanFromTempSegment(points[i].temperature, float64(points[i].fan), p.temperature, float64(p.fan)),
			})
		}

		s.index[board.USB] = func(t float64) int {
			for i := len(segments) - 1; i >= 0; i-- {
				s := segments[i]
				if t >= s.temperature {
					return int(math.Round(s.eval(t)))
				}
			}

			return points[0].fan
		}
	}

	return s
}

// Has reports whether a curve is configured for usb.
func (s *CurveShaper) Has(usb sbhs.USB) bool {
	_, ok := s.index[usb]
	return ok
}

func (s *CurveShaper) Eval(readings []Reading) map[sbhs.USB]Evaluation {
	evals := map[sbhs.USB]Evaluation{}
	for _, r := range readings {
		eval, ok := s.index[r.USB]
		if !ok {
			continue
		}

		if r.Temperature == 0 {
			// A failed temperature read is reported as 0.0, it must not stop the fan.
			continue
		}

		evals[r.USB] = Evaluation{
			USB:         r.USB,
			EvaluedAt:   time.Now(),
			Label:       s.labels[r.USB],
			Fan:         eval(r.Temperature),
			Temperature: r.Temperature,
		}
	}

	return evals
}

func FanFromTempSegment(temp1, fan1, temp2, fan2 float64) func(temp float64) float64 {
	if temp1 == temp2 {
		// Vertical step: anything reaching temp2 gets fan2.
		return func(float64) float64 {
			return fan2
		}
	}

	a := (fan2 - fan1) / (temp2 - temp1) // slope
	b := fan1 - a*temp1                  // y-intercept

	return func(temp float64) float64 {
		return max(min(a*temp+b, sbhs.MaxSetpoint), sbhs.MinSetpoint)
	}
}
