package feedsim

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"
)

// Simulation constants.
const (
	BaseTempC      = 18.0
	BasePressureMB = 1013.0
	BaseHumidity   = 60.0
	obsEvery       = 3 // one obs_st per this many rapid_wind frames
	obsFieldCount  = 22
)

// RapidWindFrame renders a rapid_wind message: [epoch, speed m/s, direction °].
func RapidWindFrame(deviceID string, epoch int64, speed, dir float64) []byte {
	return mustJSON(map[string]any{
		"type":      "rapid_wind",
		"device_id": json.Number(deviceID),
		"ob":        []any{epoch, speed, dir},
	})
}

// ObservationFrame renders an obs_st message with the given field values. Missing
// positions up to the full Tempest layout are sent as null.
func ObservationFrame(deviceID string, fields ...any) []byte {
	obs := make([]any, obsFieldCount)
	copy(obs, fields)
	return mustJSON(map[string]any{
		"type":      "obs_st",
		"device_id": json.Number(deviceID),
		"obs":       [][]any{obs},
	})
}

// StrikeFrame renders an evt_strike message: [epoch, distance km, energy].
func StrikeFrame(deviceID string, epoch int64, distance, energy float64) []byte {
	return mustJSON(map[string]any{
		"type":      "evt_strike",
		"device_id": json.Number(deviceID),
		"evt":       []any{epoch, distance, energy},
	})
}

// PrecipFrame renders an evt_precip message.
func PrecipFrame(deviceID string, epoch int64) []byte {
	return mustJSON(map[string]any{
		"type":      "evt_precip",
		"device_id": json.Number(deviceID),
		"evt":       []any{epoch},
	})
}

// StationEventFrame renders evt_station_online/offline style messages.
func StationEventFrame(eventType, stationID string, epoch int64) []byte {
	return mustJSON(map[string]any{
		"type":       eventType,
		"station_id": json.Number(stationID),
		"timestamp":  epoch,
	})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Run pushes synthetic weather for deviceID every tick until ctx is canceled.
func (s *Server) Run(ctx context.Context, deviceID string, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n++
			epoch := now.Unix()
			phase := float64(epoch%86400) / 86400 * 2 * math.Pi

			speed := round(2+1.5*math.Sin(phase*24)+rand.Float64(), 2)
			dir := float64(rand.Intn(360))
			s.Push(RapidWindFrame(deviceID, epoch, speed, dir))

			if n%obsEvery != 0 {
				continue
			}
			temp := round(BaseTempC+6*math.Sin(phase-math.Pi/2), 1)
			gust := round(speed*1.4, 2)
			lull := round(speed*0.6, 2)
			pressure := round(BasePressureMB+rand.Float64()*2-1, 1)
			humidity := round(BaseHumidity-2*(temp-BaseTempC), 0)
			// time, lull, avg, gust, dir, interval, pressure, temp, rh, lux, uv,
			// radiation, rain, precip type, strike distance, strike count, battery,
			// report interval, local daily rain, rain final
			s.Push(ObservationFrame(deviceID,
				epoch, lull, speed, gust, dir, 3, pressure, temp, humidity, 0, 0.0,
				0, 0.0, 0, 0, 0, 2.61, 1, 0.0, 0.0,
			))
		}
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
