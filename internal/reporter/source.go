package reporter

import (
	"math"
	"math/rand/v2"
)

// Report is the JSON body a reporter sends; it matches what the server accepts.
type Report struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Location    string  `json:"location"`
}

const (
	tempStep   = 0.3
	tempSpread = 2.0
	humStep    = 1.0
	humSpread  = 5.0
)

// Simulator produces readings that drift around a base value, the way a cold
// room hovers around its set point.
type Simulator struct {
	location string
	baseTemp float64
	baseHum  float64
	temp     float64
	hum      float64
	rng      *rand.Rand
}

func NewSimulator(location string, baseTemp, baseHum float64, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{
		location: location,
		baseTemp: baseTemp,
		baseHum:  baseHum,
		temp:     baseTemp,
		hum:      baseHum,
		rng:      rng,
	}
}

// Next advances the walk one step. Temperature stays within base±2 °C and
// humidity within base±5 %, clamped to 0-100.
func (s *Simulator) Next() Report {
	s.temp = clamp(s.temp+s.step(tempStep), s.baseTemp-tempSpread, s.baseTemp+tempSpread)
	s.hum = clamp(s.hum+s.step(humStep), math.Max(0, s.baseHum-humSpread), math.Min(100, s.baseHum+humSpread))
	return Report{
		Temperature: round1(s.temp),
		Humidity:    round1(s.hum),
		Location:    s.location,
	}
}

func (s *Simulator) step(size float64) float64 {
	return (s.rng.Float64()*2 - 1) * size
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
