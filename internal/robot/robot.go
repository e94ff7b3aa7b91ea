// Package robot holds the simulated state of one Marty robot.
//
// A Robot belongs to exactly one connection for its whole life: it is created
// after the handshake, mutated only by that connection's dispatcher and dropped
// when the connection closes. It is not safe for concurrent use and carries no
// lock; never hand a Robot to a second goroutine.
package robot

import (
	"fmt"
	"math"
	"time"
)

const (
	// FullChargeVoltage is the battery voltage of a freshly created robot
	FullChargeVoltage = 8.4
	// DrainStep is removed from the battery voltage every DrainEvery commands
	DrainStep  = 0.01
	DrainEvery = 10

	MotorCount = 9
	GPIOCount  = 8

	// DefaultMotorCurrent is reported for motor ids the robot does not have
	DefaultMotorCurrent = 100

	PositionReady = "ready"
)

// idle current draw in mA, indexed by motor id
var motorCurrents = [MotorCount]int{
	120, // hip left
	115, // twist left
	110, // knee left
	125, // hip right
	118, // twist right
	112, // knee right
	100, // arm left
	105, // arm right
	95,  // eyes
}

// Vector3 is an IMU reading
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Motor is the state of one servo
type Motor struct {
	Position int `json:"position"`
	Current  int `json:"current"`
}

// Robot is the per-connection device state
type Robot struct {
	Name   string
	Serial string

	BatteryVoltage float64
	BatteryPercent int

	Motors        map[int]*Motor
	Accelerometer Vector3
	Gyroscope     Vector3
	GPIO          map[int]int

	Position string
	Ready    bool

	Commands  uint64
	StartedAt time.Time

	now func() time.Time
}

// New creates a fully charged robot at rest
func New(clientID uint64, serial string) *Robot {
	r := &Robot{
		Name:           fmt.Sprintf("Marty-Virtual-%d", clientID),
		Serial:         serial,
		BatteryVoltage: FullChargeVoltage,
		BatteryPercent: 100,
		Motors:         make(map[int]*Motor, MotorCount),
		Accelerometer:  Vector3{X: 0.05, Y: 0.02, Z: 9.81},
		GPIO:           make(map[int]int, GPIOCount),
		Position:       PositionReady,
		Ready:          true,
		now:            time.Now,
	}
	for id, current := range motorCurrents {
		r.Motors[id] = &Motor{Current: current}
	}
	for pin := 0; pin < GPIOCount; pin++ {
		r.GPIO[pin] = 0
	}
	r.StartedAt = r.now()
	return r
}

// ApplyCommand records one handled command. Every DrainEvery-th command drains the battery.
func (r *Robot) ApplyCommand() {
	r.Commands++
	if r.Commands%DrainEvery == 0 {
		r.BatteryVoltage -= DrainStep
		r.BatteryPercent = int(math.Round(r.BatteryVoltage / FullChargeVoltage * 100))
	}
}

// MotorCurrent returns the current draw of a motor, or DefaultMotorCurrent for unknown ids
func (r *Robot) MotorCurrent(id int) int {
	if m, ok := r.Motors[id]; ok {
		return m.Current
	}
	return DefaultMotorCurrent
}

// Uptime is the time since the robot was created, truncated to seconds
func (r *Robot) Uptime() time.Duration {
	return r.now().Sub(r.StartedAt).Truncate(time.Second)
}

// FormatVoltage renders a voltage the way battery reads report it
func FormatVoltage(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Info is a log-friendly snapshot of the robot
type Info struct {
	Name     string `json:"name"`
	Serial   string `json:"serial"`
	Battery  string `json:"battery"`
	Position string `json:"position"`
	Commands uint64 `json:"commands"`
	Uptime   string `json:"uptime"`
}

// Info summarises the robot state
func (r *Robot) Info() Info {
	return Info{
		Name:     r.Name,
		Serial:   r.Serial,
		Battery:  fmt.Sprintf("%sV (%d%%)", FormatVoltage(r.BatteryVoltage), r.BatteryPercent),
		Position: r.Position,
		Commands: r.Commands,
		Uptime:   r.Uptime().String(),
	}
}
