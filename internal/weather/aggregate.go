package weather

import "math"

// Aggregate computes per-channel max/min/average statistics over the given
// observations in a single pass. It returns nil when there is nothing to
// aggregate, so callers can report "no statistics" instead of zeros.
func Aggregate(observations []Observation) *Statistics {
	if len(observations) == 0 {
		return nil
	}

	var (
		temp     channel
		humidity channel
		wind     channel
		gust     channel
		pressure channel
		precip   channel
		uv       channel
		solar    channel
	)

	for _, obs := range observations {
		temp.add(obs.TempC)
		humidity.add(obs.Humidity)
		wind.add(obs.WindSpeedKph)
		gust.add(obs.WindGustKph)
		pressure.add(obs.PressureMb)
		precip.add(obs.PrecipTotalMm)
		uv.add(obs.UV)
		solar.add(obs.SolarRadiation)
	}

	return &Statistics{
		TempMaxC:       temp.max(),
		TempMinC:       temp.min(),
		TempAvgC:       temp.avg(),
		HumidityAvg:    humidity.avg(),
		HumidityMax:    humidity.max(),
		HumidityMin:    humidity.min(),
		WindAvgKph:     wind.avg(),
		WindMaxKph:     wind.max(),
		WindGustMaxKph: gust.max(),
		PressureAvgMb:  pressure.avg(),
		PressureMaxMb:  pressure.max(),
		PressureMinMb:  pressure.min(),
		// The station reports precipitation as a cumulative daily counter,
		// so the range total is the maximum sample, not a sum.
		PrecipTotalMm:    precip.max(),
		UVMax:            uv.max(),
		SolarMax:         solar.max(),
		ObservationCount: len(observations),
	}
}

// channel accumulates one optional measurement across observations.
// Absent samples do not contribute.
type channel struct {
	sum      float64
	count    int
	maxSeen  float64
	minSeen  float64
}

func (c *channel) add(v *float64) {
	if v == nil {
		return
	}
	if c.count == 0 || *v > c.maxSeen {
		c.maxSeen = *v
	}
	if c.count == 0 || *v < c.minSeen {
		c.minSeen = *v
	}
	c.sum += *v
	c.count++
}

func (c *channel) max() *float64 {
	if c.count == 0 {
		return nil
	}
	return round1(c.maxSeen)
}

func (c *channel) min() *float64 {
	if c.count == 0 {
		return nil
	}
	return round1(c.minSeen)
}

func (c *channel) avg() *float64 {
	if c.count == 0 {
		return nil
	}
	return round1(c.sum / float64(c.count))
}

func round1(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}
