// Package main provides the solar tracker entry point and CLI interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devskill-org/solar-tracker/actuator"
	"github.com/devskill-org/solar-tracker/reference"
	"github.com/devskill-org/solar-tracker/sundata"
	"github.com/devskill-org/solar-tracker/tracker"
	"github.com/devskill-org/solar-tracker/utils"
)

func main() {
	// Command line flags
	var (
		configFile = flag.String("config", "config.json", "Configuration file path")
		info       = flag.Bool("info", false, "Show drive controller status")
		help       = flag.Bool("help", false, "Show help message")
		serverOnly = flag.Bool("serverOnly", false, "Run only web server without periodic tasks")
		table      = flag.Bool("table", false, "Print the sun path for -date and exit")
		report     = flag.Bool("report", false, "Compare the model against suncalc for -date and exit")
		date       = flag.String("date", "", "Date for -table and -report (YYYY-MM-DD, default today)")
		step       = flag.Duration("step", time.Hour, "Step for -table and -report")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	config, err := tracker.LoadConfig(*configFile)
	if err != nil {
		fmt.Println("Error loading configuration:", err)
		return
	}

	if *info {
		if err := actuator.ShowDriveInfo(config.DriveModbusAddress, byte(config.DriveSlaveID)); err != nil {
			fmt.Println("Error:", err)
			return
		}
		return
	}

	if *table || *report {
		model := sundata.New(config.Latitude, config.Longitude, config.UTCOffsetHours)
		day, err := parseDate(*date, model.Location())
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		if *step < tracker.MinTableStep {
			fmt.Printf("Error: invalid -step %s: want a duration of at least %s\n", *step, tracker.MinTableStep)
			return
		}
		if *table {
			runDayTable(model, day, *step)
		} else {
			runReport(model, day, *step)
		}
		return
	}

	fmt.Printf("Starting Solar Tracker with the following configuration:\n")
	fmt.Printf("  Site: %.4f, %.4f (UTC%+d)\n", config.Latitude, config.Longitude, config.UTCOffsetHours)
	fmt.Printf("  Sample Interval: %s\n", config.SampleInterval)
	fmt.Printf("  Persist Interval: %s\n", config.PersistInterval)
	fmt.Printf("  Min Tracking Elevation: %.1f°\n", config.MinTrackingElevation)
	fmt.Printf("  Wind Stow: %.1f m/s (resume below %.1f m/s)\n", config.WindStowSpeed, config.WindResumeSpeed)

	if config.DryRun {
		fmt.Printf("  Mode: DRY-RUN (drive commands will be simulated only)\n")
	}
	fmt.Println()

	// Create logger
	logger := log.New(os.Stdout, "[TRACKER] ", log.LstdFlags)

	// Create tracker
	solarTracker := tracker.NewTrackerWithWebServer(config, logger)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start tracker in a goroutine
	go func() {
		if err := solarTracker.Start(ctx, *serverOnly); err != nil {
			if err != context.Canceled {
				logger.Printf("Tracker error: %v", err)
			}
		}
	}()

	logger.Printf("Tracker started. Press Ctrl+C to stop...")

	// Wait for shutdown signal
	<-sigChan
	logger.Printf("Shutdown signal received, stopping tracker...")

	// Cancel context to stop tracker
	cancel()

	solarTracker.Stop()

	logger.Printf("Tracker stopped successfully")
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Now().In(loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -date %q: want YYYY-MM-DD", value)
	}
	return day, nil
}

func runDayTable(model sundata.Model, day time.Time, step time.Duration) {
	logger := log.New(os.Stdout, "[TABLE] ", log.LstdFlags)

	rows := tracker.BuildDayTable(model, day, step)
	if len(rows) == 0 {
		logger.Printf("No rows for step %s", step)
		return
	}
	logger.Printf("Sun path for %.4f, %.4f on %s every %s", model.Latitude(), model.Longitude(), rows[0].Time.Format("2006-01-02"), step)

	fmt.Println("\n========================================")
	fmt.Println("SUN PATH")
	fmt.Println("========================================")

	fmt.Println("┌───────┬─────┬───────────┬───────────┬───────────┬───────────┬───────────┐")
	fmt.Println("│ Time  │ Day │ Elevation │  Azimuth  │ Hour Angl │ Declinat. │ Solar Tim │")
	fmt.Println("│       │     │   (deg)   │   (deg)   │   (deg)   │   (deg)   │  (HH:MM)  │")
	fmt.Println("├───────┼─────┼───────────┼───────────┼───────────┼───────────┼───────────┤")

	for _, row := range rows {
		r := row.Result
		marker := " "
		if r.IsDaylight() {
			marker = "*"
		}
		fmt.Printf("│ %5s │ %3d │ %8.2f%s │  %7.2f  │  %7.2f  │  %7.2f  │   %5s   │\n",
			row.Time.Format("15:04"),
			r.DayOfYear,
			r.ElevationDeg,
			marker,
			r.AzimuthDeg,
			r.HourAngleDeg,
			r.DeclinationDeg,
			utils.FormatDecimalHours(r.LocalSolarTime),
		)
	}

	fmt.Println("└───────┴─────┴───────────┴───────────┴───────────┴───────────┴───────────┘")

	last := rows[len(rows)-1].Result
	fmt.Println("\n========================================")
	fmt.Println("SUMMARY")
	fmt.Println("========================================")
	fmt.Printf("Sunrise:        %s\n", formatClock(rows[0].Time, last.SunriseTime()))
	fmt.Printf("Solar noon:     %s\n", formatClock(rows[0].Time, last.SolarNoon()))
	fmt.Printf("Sunset:         %s\n", formatClock(rows[0].Time, last.SunsetTime()))
	if dl := last.DayLength(); math.IsNaN(dl) {
		fmt.Printf("Day length:     -- (polar day or night)\n")
	} else {
		fmt.Printf("Day length:     %s\n", utils.FormatDecimalHours(dl))
	}
	fmt.Printf("Equation of time: %+.2f min\n", last.EquationOfTime)
	fmt.Println("========================================")
}

func formatClock(day time.Time, h float64) string {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return "--:--"
	}
	return utils.DecimalHoursToTime(day, h).Format("15:04:05 MST")
}

func runReport(model sundata.Model, day time.Time, step time.Duration) {
	logger := log.New(os.Stdout, "[REPORT] ", log.LstdFlags)

	logger.Printf("Comparing model against suncalc for %.4f, %.4f", model.Latitude(), model.Longitude())
	rep := reference.BuildReport(model, day, step)

	fmt.Println("\n========================================")
	fmt.Println("REFERENCE ACCURACY")
	fmt.Println("========================================")
	fmt.Printf("Date:             %s\n", rep.Date.Format("2006-01-02"))
	fmt.Printf("Daylight samples: %d (skipped %d)\n", len(rep.Samples), rep.Skipped)

	if len(rep.Samples) > 0 {
		fmt.Println()
		fmt.Println("┌───────┬───────────┬───────────┬───────────┬───────────┬─────────┬─────────┐")
		fmt.Println("│ Time  │ Model El. │  Ref El.  │ Model Az. │  Ref Az.  │  dEl    │  dAz    │")
		fmt.Println("├───────┼───────────┼───────────┼───────────┼───────────┼─────────┼─────────┤")
		for _, s := range rep.Samples {
			fmt.Printf("│ %5s │  %7.2f  │  %7.2f  │  %7.2f  │  %7.2f  │ %+6.2f  │ %+6.2f  │\n",
				s.Time.Format("15:04"),
				s.ModelElevation,
				s.RefElevation,
				s.ModelAzimuth,
				s.RefAzimuth,
				s.DeltaElevation,
				s.DeltaAzimuth,
			)
		}
		fmt.Println("└───────┴───────────┴───────────┴───────────┴───────────┴─────────┴─────────┘")
	}

	fmt.Println("\n----------------------------------------")
	fmt.Println("Absolute deviation (degrees)")
	fmt.Println("----------------------------------------")
	fmt.Printf("Elevation: mean %.3f, std dev %.3f, max %.3f\n", rep.Elevation.Mean, rep.Elevation.StdDev, rep.Elevation.Max)
	fmt.Printf("Azimuth:   mean %.3f, std dev %.3f, max %.3f\n", rep.Azimuth.Mean, rep.Azimuth.StdDev, rep.Azimuth.Max)

	// The model's leap rule only matches the Gregorian calendar from 1901 to 2099.
	year := rep.Date.Year()
	if years := reference.LeapRuleDivergence(year-100, year+100); len(years) > 0 {
		fmt.Printf("\nLeap rule differs from the Gregorian calendar in: %v\n", years)
	}
	fmt.Println("========================================")
}

func showHelp() {
	fmt.Println("Solar Tracker - Point a two-axis tracker at the sun")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Computes the sun's elevation, azimuth, sunrise and sunset for the configured site,")
	fmt.Println("  commands the tracker drive over Modbus, stows it at night and in high wind,")
	fmt.Println("  and stores periodic summaries in PostgreSQL or SQLite.")
	fmt.Println()
	fmt.Println("  Key Features:")
	fmt.Println("  - Sun position from the local solar time model")
	fmt.Println("  - Drive control via Modbus TCP or RTU")
	fmt.Println("  - Wind stow from MET Norway forecasts")
	fmt.Println("  - Cross-check against suncalc")
	fmt.Println("  - Real-time web dashboard")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  solar-tracker [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Run with the default config.json")
	fmt.Println("  solar-tracker")
	fmt.Println()
	fmt.Println("  # Custom configuration")
	fmt.Println("  solar-tracker --config=site.json")
	fmt.Println()
	fmt.Println("  # Show drive controller status")
	fmt.Println("  solar-tracker -info")
	fmt.Println()
	fmt.Println("  # Run only web server without periodic tasks")
	fmt.Println("  solar-tracker -serverOnly")
	fmt.Println()
	fmt.Println("  # Sun path for the summer solstice every 15 minutes")
	fmt.Println("  solar-tracker -table -date=2024-06-21 -step=15m")
	fmt.Println()
	fmt.Println("  # Model accuracy against suncalc")
	fmt.Println("  solar-tracker -report -date=2024-06-21")
	fmt.Println()
	fmt.Println("  # Show this help")
	fmt.Println("  solar-tracker -help")
}
