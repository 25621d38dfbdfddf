// Package main prints the wind outlook used by the tracker's stow logic.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/devskill-org/solar-tracker/meteo"
)

func main() {
	lat := flag.Float64("lat", 56.9496, "latitude")
	lon := flag.Float64("lon", 24.1052, "longitude")
	stow := flag.Float64("stow", 15, "gust speed (m/s) that triggers a wind stow")
	hours := flag.Int("hours", 12, "hours to show")
	flag.Parse()

	client := meteo.NewClient("solar-tracker-example/1.0 (ops@example.com)")

	forecast, err := client.GetCompact(meteo.QueryParams{
		Location: meteo.Location{Latitude: *lat, Longitude: *lon},
	})
	if err != nil {
		switch e := err.(type) {
		case *meteo.APIError:
			log.Fatalf("API error %d: %s", e.StatusCode, e.Message)
		case *meteo.ValidationError:
			log.Fatalf("Validation error: %s", e.Message)
		case *meteo.NetworkError:
			log.Fatalf("Network error: %v", e.Err)
		default:
			log.Fatalf("Unknown error: %v", err)
		}
	}

	fmt.Printf("Forecast updated: %s\n\n", forecast.Properties.Meta.UpdatedAt.Format("2006-01-02 15:04 UTC"))
	fmt.Printf("%-17s %8s %8s %6s  %s\n", "Time", "Wind", "Gust", "Dir", "Symbol")

	now := time.Now()
	for i := 0; i < *hours; i++ {
		step := forecast.GetWeatherAtTime(now.Add(time.Duration(i) * time.Hour))
		if step == nil {
			break
		}

		wind, gust, dir := "-", "-", "-"
		if v := step.GetWindSpeed(); v != nil {
			wind = fmt.Sprintf("%.1f", *v)
		}
		g := step.GetWindGust()
		if g != nil {
			gust = fmt.Sprintf("%.1f", *g)
		}
		if v := step.GetWindDirection(); v != nil {
			dir = fmt.Sprintf("%.0f", *v)
		}
		symbol := ""
		if s := step.GetSymbolCode(); s != nil {
			symbol = string(*s)
		}

		flagText := ""
		if g != nil && *g >= *stow {
			flagText = "  STOW"
		}
		if s := step.GetSymbolCode(); s != nil && s.HasThunder() {
			flagText += "  THUNDER"
		}

		fmt.Printf("%-17s %8s %8s %6s  %s%s\n", step.Time.Local().Format("2006-01-02 15:04"), wind, gust, dir, symbol, flagText)
	}
}
