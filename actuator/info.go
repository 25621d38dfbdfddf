package actuator

import (
	"fmt"
)

// ShowDriveInfo displays the drive status in a formatted table
func ShowDriveInfo(driveModbusAddress string, slaveID byte) error {
	if driveModbusAddress == "" {
		return fmt.Errorf("DriveModbusAddress is not configured")
	}

	client, err := NewTCPClient(driveModbusAddress, slaveID)
	if err != nil {
		return fmt.Errorf("error connecting to drive modbus server at %s: %w", driveModbusAddress, err)
	}
	defer client.Close()

	status, err := client.ReadDriveStatus()
	if err != nil {
		return fmt.Errorf("error reading drive status: %w", err)
	}

	printDriveStatus(status)
	return nil
}

func printDriveStatus(status *DriveStatus) {
	fmt.Println()
	fmt.Println("========================= TRACKER DRIVE INFORMATION =========================")
	fmt.Println()

	fmt.Println("SYSTEM INFORMATION")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("  Drive Time:                     %s\n", status.Time().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Drive State:                    %s\n", status.State)
	fmt.Println()

	fmt.Println("POSITION")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("  Azimuth:                        %.2f°\n", status.AzimuthDeg)
	fmt.Printf("  Elevation:                      %.2f°\n", status.ElevationDeg)
	fmt.Println()

	if status.Alarms != 0 {
		fmt.Println("ALARMS")
		fmt.Println("--------------------------------------------------")
		fmt.Printf("  Alarm Word:                     0x%04X\n", status.Alarms)
		for _, name := range alarmNames(status.Alarms) {
			fmt.Printf("    - %s\n", name)
		}
		fmt.Println()
	}

	fmt.Println("=============================================================================")
	fmt.Println()
}

var alarmBits = []string{
	"Azimuth motor overcurrent",
	"Elevation motor overcurrent",
	"Azimuth limit switch",
	"Elevation limit switch",
	"Encoder fault",
	"Wind sensor fault",
	"Communication timeout",
	"Emergency stop",
}

func alarmNames(alarms uint16) []string {
	var names []string
	for bit, name := range alarmBits {
		if alarms&(1<<uint(bit)) != 0 {
			names = append(names, name)
		}
	}
	for bit := len(alarmBits); bit < 16; bit++ {
		if alarms&(1<<uint(bit)) != 0 {
			names = append(names, fmt.Sprintf("Reserved bit %d", bit))
		}
	}
	return names
}
