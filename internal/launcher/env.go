package launcher

import (
	"fmt"
	"os"
	"strconv"
)

// Environment a supervised worker is started with.
const (
	EnvCore     = "GRAMFUZZ_WORKER_CORE"
	EnvBroker   = "GRAMFUZZ_WORKER_BROKER"
	EnvClientID = "GRAMFUZZ_WORKER_ID"
	EnvLaunchID = "GRAMFUZZ_WORKER_LAUNCH"
	EnvRestarts = "GRAMFUZZ_WORKER_RESTARTS"
)

// ExitRestart is the exit code a worker uses to ask for a restart.
const ExitRestart = 101

// Worker describes one supervised worker process.
type Worker struct {
	Core     int
	Broker   string
	ClientID string
	LaunchID string
	// Restarts counts earlier incarnations of this worker.
	Restarts int
}

// WorkerFromEnv reports whether the process runs as a supervised worker.
func WorkerFromEnv() (Worker, bool, error) {
	broker, ok := os.LookupEnv(EnvBroker)
	if !ok {
		return Worker{}, false, nil
	}
	w := Worker{
		Broker:   broker,
		ClientID: os.Getenv(EnvClientID),
		LaunchID: os.Getenv(EnvLaunchID),
	}
	var err error
	if w.Core, err = strconv.Atoi(os.Getenv(EnvCore)); err != nil {
		return Worker{}, true, fmt.Errorf("%s: %w", EnvCore, err)
	}
	if v := os.Getenv(EnvRestarts); v != "" {
		if w.Restarts, err = strconv.Atoi(v); err != nil {
			return Worker{}, true, fmt.Errorf("%s: %w", EnvRestarts, err)
		}
	}
	if w.ClientID == "" {
		return Worker{}, true, fmt.Errorf("%s is not set", EnvClientID)
	}
	return w, true, nil
}

// Environ returns the variables describing w.
func (w Worker) Environ() []string {
	return []string{
		EnvCore + "=" + strconv.Itoa(w.Core),
		EnvBroker + "=" + w.Broker,
		EnvClientID + "=" + w.ClientID,
		EnvLaunchID + "=" + w.LaunchID,
		EnvRestarts + "=" + strconv.Itoa(w.Restarts),
	}
}

// StateFile is where the worker on core keeps its snapshot inside dir.
func (w Worker) StateFile(dir string) string {
	return fmt.Sprintf("%s/%s-core%d.state", dir, w.LaunchID, w.Core)
}
