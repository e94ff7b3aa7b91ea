package robot

import (
	"math"
	"testing"
	"time"
)

func TestNewRobotDefaults(t *testing.T) {
	r := New(3, "abc")
	if r.Name != "Marty-Virtual-3" {
		t.Fatalf("unexpected name %q", r.Name)
	}
	if r.BatteryVoltage != FullChargeVoltage || r.BatteryPercent != 100 {
		t.Fatalf("expected full battery, got %v (%d%%)", r.BatteryVoltage, r.BatteryPercent)
	}
	if len(r.Motors) != MotorCount {
		t.Fatalf("expected %d motors, got %d", MotorCount, len(r.Motors))
	}
	if len(r.GPIO) != GPIOCount {
		t.Fatalf("expected %d gpio pins, got %d", GPIOCount, len(r.GPIO))
	}
	if r.Position != PositionReady || !r.Ready {
		t.Fatalf("expected ready robot")
	}
}

func TestBatteryDrainsEveryTenthCommand(t *testing.T) {
	r := New(1, "")

	for i := 0; i < DrainEvery-1; i++ {
		r.ApplyCommand()
	}
	if r.BatteryVoltage != FullChargeVoltage {
		t.Fatalf("voltage changed after %d commands: %v", DrainEvery-1, r.BatteryVoltage)
	}

	r.ApplyCommand()
	if math.Abs(r.BatteryVoltage-(FullChargeVoltage-DrainStep)) > 1e-9 {
		t.Fatalf("expected one drain step after %d commands, got %v", DrainEvery, r.BatteryVoltage)
	}
	if FormatVoltage(r.BatteryVoltage) != "8.39" {
		t.Fatalf("expected 8.39, got %s", FormatVoltage(r.BatteryVoltage))
	}
	if r.BatteryPercent != 100 {
		t.Fatalf("expected rounded 100%%, got %d", r.BatteryPercent)
	}
	if r.Commands != DrainEvery {
		t.Fatalf("expected %d commands, got %d", DrainEvery, r.Commands)
	}
}

func TestBatteryPercentFollowsVoltage(t *testing.T) {
	r := New(1, "")
	for i := 0; i < DrainEvery*42; i++ {
		r.ApplyCommand()
	}
	// 8.4 - 0.42 = 7.98 -> 95%
	if r.BatteryPercent != 95 {
		t.Fatalf("expected 95%%, got %d (voltage %v)", r.BatteryPercent, r.BatteryVoltage)
	}
}

func TestMotorCurrent(t *testing.T) {
	r := New(1, "")
	if got := r.MotorCurrent(3); got != 125 {
		t.Fatalf("expected 125 for motor 3, got %d", got)
	}
	if got := r.MotorCurrent(8); got != 95 {
		t.Fatalf("expected 95 for motor 8, got %d", got)
	}
	if got := r.MotorCurrent(42); got != DefaultMotorCurrent {
		t.Fatalf("expected default current for unknown motor, got %d", got)
	}
}

func TestInfoSnapshot(t *testing.T) {
	r := New(2, "serial-1")
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.StartedAt = start
	r.now = func() time.Time { return start.Add(90*time.Second + 400*time.Millisecond) }
	r.ApplyCommand()

	info := r.Info()
	if info.Battery != "8.40V (100%)" {
		t.Fatalf("unexpected battery %q", info.Battery)
	}
	if info.Uptime != "1m30s" {
		t.Fatalf("unexpected uptime %q", info.Uptime)
	}
	if info.Commands != 1 || info.Serial != "serial-1" {
		t.Fatalf("unexpected info %+v", info)
	}
}
