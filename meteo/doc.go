// Package meteo is a small client for the MET Norway Locationforecast 2.0
// API, limited to what a solar tracker needs to decide whether to stow:
// wind speed, gusts, and thunder.
//
// Basic Usage:
//
//	client := meteo.NewClient("solar-tracker/1.0 (ops@example.com)")
//
//	forecast, err := client.GetCompact(meteo.QueryParams{
//		Location: meteo.Location{Latitude: 56.9496, Longitude: 24.1052},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if gust := forecast.GetCurrentWeather().GetWindGust(); gust != nil {
//		fmt.Printf("gust %.1f m/s\n", *gust)
//	}
//
// MET requires a User-Agent that identifies the application and a contact.
// See https://api.met.no/weatherapi/locationforecast/2.0/documentation
package meteo
