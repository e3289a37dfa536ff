package cluster

import (
	"os"
	"strconv"
	"strings"
)

const (
	EnvRole     = "SVK_CLUSTER_ROLE"
	EnvWorkerID = "SVK_CLUSTER_WORKER_ID"

	RoleMaster = "master"
	RoleWorker = "worker"
)

func IsWorker() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(EnvRole)), RoleWorker)
}

func WorkerID() int {
	raw := strings.TrimSpace(os.Getenv(EnvWorkerID))
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0
	}
	return v
}

func IsMainClusterInstance() (bool, bool) {
	for _, key := range []string{"NODE_APP_INSTANCE", "pm_id", "INSTANCE_ID"} {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return false, true
		}
		return v == 0, true
	}
	return false, false
}

// ShouldRunCron keeps cron jobs single-run across replicated workers.
func ShouldRunCron() bool {
	if IsWorker() {
		return WorkerID() == 1
	}
	if mainCluster, ok := IsMainClusterInstance(); ok {
		return mainCluster
	}
	return true
}

// ShouldLogBootstrap suppresses duplicate startup logs on secondary workers.
func ShouldLogBootstrap() bool {
	return ShouldRunCron()
}

// ShouldLogDevDiagnostics gates noisy dev-only diagnostics to a single worker.
func ShouldLogDevDiagnostics() bool {
	return ShouldRunCron()
}
