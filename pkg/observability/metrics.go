package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsRecorded counts turns accepted into the memory subsystem by role.
	TurnsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanqing_memory_turns_recorded_total",
		Help: "Turns written to the turn log and conversation buffer.",
	}, []string{"role"})

	// TriggerFired counts extraction triggers by reason ("count" or "stale").
	TriggerFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanqing_memory_trigger_fired_total",
		Help: "Extraction trigger decisions that fired.",
	}, []string{"reason"})

	// DrainsTotal counts successful non-empty buffer drains.
	DrainsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wanqing_memory_drains_total",
		Help: "Successful conversation buffer drains.",
	})

	// ExtractionFailures counts handed-off batches the extractor rejected.
	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wanqing_memory_extraction_failures_total",
		Help: "Extraction attempts that returned an error.",
	})

	// CommandsHandled counts bot commands by name.
	CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanqing_bot_commands_handled_total",
		Help: "Bot commands dispatched by name.",
	}, []string{"command"})
)
