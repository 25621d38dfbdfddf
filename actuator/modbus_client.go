// Package actuator drives a two-axis solar tracker over Modbus.
package actuator

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/goburrow/modbus"
)

// Modbus client configuration
const (
	BroadcastAddress = 0
	MinSlaveAddress  = 1
	MaxSlaveAddress  = 246
)

// Holding registers
const (
	RegTargetAzimuth   = 40000 // uint16, 0.01°
	RegTargetElevation = 40001 // int16, 0.01°
	RegCommand         = 40002
)

// Input registers
const (
	RegSystemTime      = 30000 // uint32 epoch seconds, two registers
	RegActualAzimuth   = 30002 // uint16, 0.01°
	RegActualElevation = 30003 // int16, 0.01°
	RegDriveState      = 30004
	RegAlarms          = 30005

	statusRegisterCount = 6
)

// Command is written to RegCommand.
type Command uint16

const (
	CommandIdle  Command = 0
	CommandTrack Command = 1
	CommandStow  Command = 2
)

func (c Command) String() string {
	switch c {
	case CommandIdle:
		return "idle"
	case CommandTrack:
		return "track"
	case CommandStow:
		return "stow"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(c))
	}
}

// DriveState is reported in RegDriveState.
type DriveState uint16

const (
	StateIdle     DriveState = 0
	StateMoving   DriveState = 1
	StateOnTarget DriveState = 2
	StateStowed   DriveState = 3
	StateFault    DriveState = 4
)

func (s DriveState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateMoving:
		return "Moving"
	case StateOnTarget:
		return "On Target"
	case StateStowed:
		return "Stowed"
	case StateFault:
		return "Fault"
	default:
		return fmt.Sprintf("Unknown (%d)", uint16(s))
	}
}

// DriveClient talks to the tracker drive controller.
type DriveClient struct {
	client     modbus.Client
	handler    *modbus.RTUClientHandler
	tcpHandler *modbus.TCPClientHandler
	slaveID    byte
}

// NewRTUClient connects to a drive on a serial line.
func NewRTUClient(device string, baudRate int, slaveID byte) (*DriveClient, error) {
	if err := validateSlaveID(slaveID); err != nil {
		return nil, err
	}

	handler := modbus.NewRTUClientHandler(device)
	handler.BaudRate = baudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.SlaveId = slaveID
	handler.Timeout = 1 * time.Second

	err := handler.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", device, err)
	}

	return &DriveClient{
		client:  modbus.NewClient(handler),
		handler: handler,
		slaveID: slaveID,
	}, nil
}

// NewTCPClient connects to a drive over Modbus TCP (address is IP:PORT).
func NewTCPClient(address string, slaveID byte) (*DriveClient, error) {
	if err := validateSlaveID(slaveID); err != nil {
		return nil, err
	}

	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = 1 * time.Second

	err := handler.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return &DriveClient{
		client:     modbus.NewClient(handler),
		tcpHandler: handler,
		slaveID:    slaveID,
	}, nil
}

// Close closes the Modbus connection
func (c *DriveClient) Close() error {
	if c.handler != nil {
		return c.handler.Close()
	}
	if c.tcpHandler != nil {
		return c.tcpHandler.Close()
	}
	return nil
}

// SetSlaveID changes the slave ID for subsequent operations
func (c *DriveClient) SetSlaveID(slaveID byte) {
	c.slaveID = slaveID
	if c.handler != nil {
		c.handler.SlaveId = slaveID
	}
	if c.tcpHandler != nil {
		c.tcpHandler.SlaveId = slaveID
	}
}

func validateSlaveID(slaveID byte) error {
	if slaveID < MinSlaveAddress || slaveID > MaxSlaveAddress {
		return fmt.Errorf("invalid slave ID %d: must be between %d and %d", slaveID, MinSlaveAddress, MaxSlaveAddress)
	}
	return nil
}

// Helper functions for data conversion
func bytesToU16(data []byte) uint16 {
	return binary.BigEndian.Uint16(data)
}

func bytesToS16(data []byte) int16 {
	return int16(binary.BigEndian.Uint16(data))
}

func bytesToU32(data []byte) uint32 {
	return binary.BigEndian.Uint32(data)
}

func u16ToBytes(val uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, val)
	return buf
}

// EncodeAzimuth converts degrees to the register value. The angle is
// normalized into [0, 360) first.
func EncodeAzimuth(deg float64) (uint16, error) {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0, fmt.Errorf("azimuth is not a finite number: %v", deg)
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	v := math.Round(deg * 100)
	if v >= 36000 {
		v = 0
	}
	return uint16(v), nil
}

// EncodeElevation converts degrees to the register value, clamped to [-90, 90].
func EncodeElevation(deg float64) (uint16, error) {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0, fmt.Errorf("elevation is not a finite number: %v", deg)
	}
	deg = math.Max(-90, math.Min(90, deg))
	return uint16(int16(math.Round(deg * 100))), nil
}

// DecodeAzimuth converts a register value to degrees.
func DecodeAzimuth(v uint16) float64 {
	return float64(v) / 100.0
}

// DecodeElevation converts a register value to degrees.
func DecodeElevation(v uint16) float64 {
	return float64(int16(v)) / 100.0
}

// WriteTarget points the tracker at the given azimuth and elevation and sets
// the track command in a single block write.
func (c *DriveClient) WriteTarget(azimuthDeg, elevationDeg float64) error {
	return c.writeBlock(azimuthDeg, elevationDeg, CommandTrack)
}

// Stow moves the tracker to a stow position.
func (c *DriveClient) Stow(azimuthDeg, elevationDeg float64) error {
	return c.writeBlock(azimuthDeg, elevationDeg, CommandStow)
}

// SetCommand writes the command register alone.
func (c *DriveClient) SetCommand(cmd Command) error {
	_, err := c.client.WriteSingleRegister(RegCommand, uint16(cmd))
	if err != nil {
		return fmt.Errorf("failed to write command %s: %w", cmd, err)
	}
	return nil
}

func (c *DriveClient) writeBlock(azimuthDeg, elevationDeg float64, cmd Command) error {
	az, err := EncodeAzimuth(azimuthDeg)
	if err != nil {
		return err
	}
	el, err := EncodeElevation(elevationDeg)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, 6)
	buf = append(buf, u16ToBytes(az)...)
	buf = append(buf, u16ToBytes(el)...)
	buf = append(buf, u16ToBytes(uint16(cmd))...)

	_, err = c.client.WriteMultipleRegisters(RegTargetAzimuth, 3, buf)
	if err != nil {
		return fmt.Errorf("failed to write %s target: %w", cmd, err)
	}
	return nil
}

// DriveStatus is the drive's view of itself.
type DriveStatus struct {
	SystemTime   uint32 // Epoch seconds
	AzimuthDeg   float64
	ElevationDeg float64
	State        DriveState
	Alarms       uint16
}

// Time returns the drive clock as a time.Time.
func (s *DriveStatus) Time() time.Time {
	return time.Unix(int64(s.SystemTime), 0)
}

// ReadDriveStatus reads the input register block.
func (c *DriveClient) ReadDriveStatus() (*DriveStatus, error) {
	data, err := c.client.ReadInputRegisters(RegSystemTime, statusRegisterCount)
	if err != nil {
		return nil, fmt.Errorf("failed to read drive status: %w", err)
	}
	if len(data) < statusRegisterCount*2 {
		return nil, fmt.Errorf("short drive status response: %d bytes", len(data))
	}

	return &DriveStatus{
		SystemTime:   bytesToU32(data[0:4]),
		AzimuthDeg:   DecodeAzimuth(bytesToU16(data[4:6])),
		ElevationDeg: float64(bytesToS16(data[6:8])) / 100.0,
		State:        DriveState(bytesToU16(data[8:10])),
		Alarms:       bytesToU16(data[10:12]),
	}, nil
}
