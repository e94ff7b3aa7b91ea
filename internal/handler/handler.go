package handler

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jcdorr003/marty-emulator/internal/ricserial"
	"github.com/jcdorr003/marty-emulator/internal/robot"
	"go.uber.org/zap"
)

// UnknownCommandMessage is returned for envelopes that could not be decoded
const UnknownCommandMessage = "Unknown command"

// route pairs a path predicate with the handler producing its response.
// Routes are tried in table order, the first match wins.
type route struct {
	name   string
	match  func(path string) bool
	handle func(r *robot.Robot, id byte, path string) ricserial.Response
}

var restRoutes = []route{
	{name: "trajectory", match: hasPrefix("traj/"), handle: handleTrajectory},
	{name: "battery", match: contains("battery"), handle: handleBattery},
	{name: "accelerometer", match: contains("accel"), handle: handleAccelerometer},
	{name: "gyroscope", match: contains("gyro"), handle: handleGyroscope},
	{name: "motor current", match: contains("motorcurrent", "motor/"), handle: handleMotorCurrent},
	{name: "gpio", match: contains("gpio"), handle: handleGPIO},
	{name: "status", match: contains("status", "hwstatus"), handle: handleStatus},
}

// Dispatcher turns decoded commands into robot mutations and responses
type Dispatcher struct {
	robot  *robot.Robot
	logger *zap.SugaredLogger
}

// New creates a dispatcher bound to one connection's robot
func New(r *robot.Robot, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{robot: r, logger: logger}
}

// Dispatch handles one command. It never fails: unrecognised input yields an error response.
func (d *Dispatcher) Dispatch(cmd ricserial.Command) ricserial.Response {
	switch c := cmd.(type) {
	case ricserial.Rest:
		return d.handleRest(c)
	case ricserial.JSON:
		return d.handleJSON(c)
	case ricserial.Binary:
		d.logger.Debugw("📦 Binary command", "id", c.ID, "subtype", c.Subtype, "flags", c.Flags, "bytes", len(c.Data))
		return ricserial.OK(c.ID)
	default:
		d.logger.Warnw("❓ Unknown command", "bytes", rawLen(cmd))
		return ricserial.Error(cmd.MsgID(), UnknownCommandMessage)
	}
}

func (d *Dispatcher) handleRest(c ricserial.Rest) ricserial.Response {
	d.robot.ApplyCommand()

	path := strings.ToLower(c.Path)
	for _, rt := range restRoutes {
		if rt.match(path) {
			d.logger.Debugw("🔧 REST command", "id", c.ID, "path", c.Path, "route", rt.name)
			return rt.handle(d.robot, c.ID, path)
		}
	}

	d.logger.Debugw("🔧 REST command", "id", c.ID, "path", c.Path, "route", "default")
	return ricserial.OK(c.ID)
}

func (d *Dispatcher) handleJSON(c ricserial.JSON) ricserial.Response {
	var name string
	if m, ok := c.Data.(map[string]any); ok {
		name, _ = m["cmdName"].(string)
	}
	d.logger.Debugw("🧾 JSON command", "id", c.ID, "cmdName", name)

	if name == "subscription" {
		return ricserial.JSONResponse(c.ID, map[string]any{"rslt": "ok", "subscribed": true})
	}
	return ricserial.OK(c.ID)
}

func handleTrajectory(r *robot.Robot, id byte, path string) ricserial.Response {
	name := strings.TrimPrefix(path, "traj/")
	if i := strings.IndexAny(name, "?/"); i >= 0 {
		name = name[:i]
	}
	if name != "" {
		r.Position = name
	}
	return ricserial.OK(id)
}

func handleBattery(r *robot.Robot, id byte, _ string) ricserial.Response {
	return ricserial.Value(id, robot.FormatVoltage(r.BatteryVoltage))
}

func handleAccelerometer(r *robot.Robot, id byte, _ string) ricserial.Response {
	return ricserial.JSONResponse(id, r.Accelerometer)
}

func handleGyroscope(r *robot.Robot, id byte, _ string) ricserial.Response {
	return ricserial.JSONResponse(id, r.Gyroscope)
}

func handleMotorCurrent(r *robot.Robot, id byte, path string) ricserial.Response {
	return ricserial.Value(id, strconv.Itoa(r.MotorCurrent(motorID(path))))
}

func handleGPIO(r *robot.Robot, id byte, _ string) ricserial.Response {
	states := make(map[int]int, len(r.GPIO))
	for pin, v := range r.GPIO {
		states[pin] = v
	}
	return ricserial.JSONResponse(id, map[string]any{"gpio": states})
}

func handleStatus(r *robot.Robot, id byte, _ string) ricserial.Response {
	return ricserial.JSONResponse(id, map[string]any{
		"rslt":     "ok",
		"isReady":  r.Ready,
		"isMoving": false,
	})
}

// unknownMotor never matches a motor, so MotorCurrent reports the default
const unknownMotor = -1

var (
	motorSlashID = regexp.MustCompile(`motor/(-?\d+)`)
	firstNumber  = regexp.MustCompile(`motorcurrent[^\d-]*(-?\d+)`)
)

// motorID extracts the motor id from paths like "motor/3" or "motorcurrent?id=3", defaulting to 0.
// Negative ids and ids too large for an int are unknown motors.
func motorID(path string) int {
	for _, re := range []*regexp.Regexp{motorSlashID, firstNumber} {
		if m := re.FindStringSubmatch(path); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 0 {
				return unknownMotor
			}
			return n
		}
	}
	return 0
}

func hasPrefix(prefix string) func(string) bool {
	return func(path string) bool { return strings.HasPrefix(path, prefix) }
}

func contains(needles ...string) func(string) bool {
	return func(path string) bool {
		for _, n := range needles {
			if strings.Contains(path, n) {
				return true
			}
		}
		return false
	}
}

func rawLen(cmd ricserial.Command) int {
	if u, ok := cmd.(ricserial.Unknown); ok {
		return len(u.Raw)
	}
	return 0
}
