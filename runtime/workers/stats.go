package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"studyhall/contract"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*StatsWorker)(nil)

// StatsWorker periodically logs a snapshot of the room and of the
// process itself. Observability only; nothing reads these values back.
type StatsWorker struct {
	log      *slog.Logger
	interval time.Duration
	registry contract.IRegistry
	messages contract.IMessageLog
}

func NewStatsWorker(log *slog.Logger, interval time.Duration,
	registry contract.IRegistry, messages contract.IMessageLog) *StatsWorker {
	return &StatsWorker{log: log, interval: interval, registry: registry, messages: messages}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping stats worker")
			return ctx.Err()
		case <-ticker.C:
			cpu, err := proc.CPUPercent()
			if err != nil {
				w.log.Debug("Could not read process cpu usage", "error", err)
				continue
			}
			ram, err := proc.MemoryPercent()
			if err != nil {
				w.log.Debug("Could not read process ram usage", "error", err)
				continue
			}
			w.log.Info("Room stats",
				"participants", w.registry.Count(),
				"messages", w.messages.Len(),
				"cpu_percent", cpu,
				"ram_percent", ram)
		}
	}
}
