package metrics

import (
	"fmt"

	"github.com/denisbrodbeck/machineid"
)

// GetHostID returns a stable unique identifier for this machine.
// Robots created by the emulator derive their serial numbers from it.
func GetHostID() (string, error) {
	id, err := machineid.ProtectedID("marty-emulator")
	if err != nil {
		return "", fmt.Errorf("failed to get machine ID: %w", err)
	}
	return id, nil
}

// SerialFor builds a robot serial number from the host id and a client number
func SerialFor(hostID string, client uint64) string {
	prefix := hostID
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	return fmt.Sprintf("%s-%04d", prefix, client)
}
