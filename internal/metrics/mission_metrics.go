package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("mission-metrics")

// MissionMetrics provides metrics collection for autopilot missions.
type MissionMetrics struct {
	missionsStartedCounter   metric.Int64Counter
	missionsCompletedCounter metric.Int64Counter
	missionsFailedCounter    metric.Int64Counter
	missionDurationHistogram metric.Float64Histogram
	missionsActiveGauge      metric.Int64UpDownCounter
	filesWrittenCounter      metric.Int64Counter
}

// NewMissionMetrics creates a new mission metrics collector.
func NewMissionMetrics() (*MissionMetrics, error) {
	missionsStartedCounter, err := meter.Int64Counter(
		"nexus.missions.started",
		metric.WithDescription("Total number of autopilot missions started"),
		metric.WithUnit("{mission}"),
	)
	if err != nil {
		return nil, err
	}

	missionsCompletedCounter, err := meter.Int64Counter(
		"nexus.missions.completed",
		metric.WithDescription("Total number of missions completed successfully"),
		metric.WithUnit("{mission}"),
	)
	if err != nil {
		return nil, err
	}

	missionsFailedCounter, err := meter.Int64Counter(
		"nexus.missions.failed",
		metric.WithDescription("Total number of missions that failed"),
		metric.WithUnit("{mission}"),
	)
	if err != nil {
		return nil, err
	}

	missionDurationHistogram, err := meter.Float64Histogram(
		"nexus.mission.duration",
		metric.WithDescription("Duration of mission execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	missionsActiveGauge, err := meter.Int64UpDownCounter(
		"nexus.missions.active",
		metric.WithDescription("Number of currently running missions"),
		metric.WithUnit("{mission}"),
	)
	if err != nil {
		return nil, err
	}

	filesWrittenCounter, err := meter.Int64Counter(
		"nexus.mission.files",
		metric.WithDescription("Total number of planned files processed by missions"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, err
	}

	return &MissionMetrics{
		missionsStartedCounter:   missionsStartedCounter,
		missionsCompletedCounter: missionsCompletedCounter,
		missionsFailedCounter:    missionsFailedCounter,
		missionDurationHistogram: missionDurationHistogram,
		missionsActiveGauge:      missionsActiveGauge,
		filesWrittenCounter:      filesWrittenCounter,
	}, nil
}

// RecordMissionStarted records a new mission launch.
func (mm *MissionMetrics) RecordMissionStarted(ctx context.Context, projectID string) {
	mm.missionsStartedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("project.id", projectID)),
	)
	mm.missionsActiveGauge.Add(ctx, 1,
		metric.WithAttributes(attribute.String("project.id", projectID)),
	)
}

// RecordMissionCompleted records a successful mission.
func (mm *MissionMetrics) RecordMissionCompleted(ctx context.Context, projectID string, files int, duration time.Duration) {
	mm.missionsCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("status", "completed"),
		),
	)
	mm.filesWrittenCounter.Add(ctx, int64(files),
		metric.WithAttributes(attribute.String("project.id", projectID)),
	)
	mm.missionDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("status", "completed"),
		),
	)
	mm.missionsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(attribute.String("project.id", projectID)),
	)
}

// RecordMissionFailed records a mission that ended in a terminal failure.
func (mm *MissionMetrics) RecordMissionFailed(ctx context.Context, projectID, reason string, duration time.Duration) {
	mm.missionsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("status", "failed"),
			attribute.String("failure.reason", reason),
		),
	)
	mm.missionDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("status", "failed"),
		),
	)
	mm.missionsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(attribute.String("project.id", projectID)),
	)
}
