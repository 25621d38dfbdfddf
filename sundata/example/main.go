// Package main shows the sundata model next to suncalc for the current time.
package main

import (
	"fmt"
	"math"
	"time"

	"github.com/devskill-org/solar-tracker/sundata"
	"github.com/devskill-org/solar-tracker/utils"
	"github.com/sixdouglas/suncalc"
)

func main() {
	const (
		lat    = 56.9496 // Riga
		lon    = 24.1052
		offset = 2
	)

	now := time.Now()

	model := sundata.New(lat, lon, offset)
	model.SetTimeFrom(now)
	res := model.Calculate()

	fmt.Printf("Local standard time: %s (day %d)\n", now.In(model.Location()).Format("2006-01-02 15:04:05"), res.DayOfYear)
	fmt.Printf("sundata  Azimuth: %.2f°, Elevation: %.2f°\n", res.AzimuthDeg, res.ElevationDeg)

	// suncalc measures azimuth from south, positive westwards
	pos := suncalc.GetPosition(now, lat, lon)
	fmt.Printf("suncalc  Azimuth: %.2f°, Elevation: %.2f°\n",
		math.Mod(pos.Azimuth*180/math.Pi+180, 360),
		pos.Altitude*180/math.Pi)

	fmt.Println("Sunrise:", utils.FormatDecimalHours(res.SunriseTime()))
	fmt.Println("Sunset: ", utils.FormatDecimalHours(res.SunsetTime()))

	times := suncalc.GetTimes(now, lat, lon)
	fmt.Println("suncalc sunrise:", times["sunrise"].Value.In(model.Location()).Format("15:04"))
	fmt.Println("suncalc sunset: ", times["sunset"].Value.In(model.Location()).Format("15:04"))
}
