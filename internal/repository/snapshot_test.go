package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"change-risk/backend/pkg/models"
)

const referenceYAML = `
historical_changes:
  - id: CHG0009001
    business_application_group: Billing
    type: standard
    outcome: success
  - id: CHG0009002
    business_application_group: Billing
    type: standard
    outcome: incident
    incident_details:
      resolved: true
  - id: CHG0009003
    business_application_group: Billing
    type: normal
    outcome: success
scheduled_changes:
  - id: CHG0011001
    business_application_group: Network Services
    start: 2025-07-15T23:00:00Z
    end: 2025-07-16T01:00:00Z
  - id: CHG0011002
    business_application_group: Payments
    start: 2025-07-16T03:00:00Z
    end: 2025-07-16T05:00:00Z
maintenance_windows:
  - id: MW-TUE
    name: Tuesday overnight
    weekdays: [2]
    start_hour: 22
    end_hour: 23
`

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(referenceYAML))
	require.NoError(t, err)
	ctx := context.Background()

	similar, err := snap.QuerySimilarChanges(ctx, "Billing", models.ChangeTypeStandard)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, "CHG0009001", similar[0].ID)
	require.NotNil(t, similar[1].IncidentDetails)
	assert.True(t, similar[1].IncidentDetails.Resolved)

	start := time.Date(2025, time.July, 15, 22, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.July, 16, 3, 0, 0, 0, time.UTC)
	overlapping, err := snap.QueryOverlappingChanges(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, "CHG0011001", overlapping[0].ID)

	windows, err := snap.QueryMaintenanceWindows(ctx)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, []time.Weekday{time.Tuesday}, windows[0].Weekdays)
	assert.Equal(t, 22, windows[0].StartHour)
}

func TestParseSnapshot_RejectsInvalidData(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "historical_changes: [\n"},
		{"reversed scheduled change", `
scheduled_changes:
  - id: BAD
    start: 2025-07-16T01:00:00Z
    end: 2025-07-15T23:00:00Z
`},
		{"hour out of range", `
maintenance_windows:
  - id: BAD
    weekdays: [0]
    start_hour: 22
    end_hour: 25
`},
		{"inverted hours", `
maintenance_windows:
  - id: BAD
    weekdays: [0]
    start_hour: 6
    end_hour: 2
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.yaml")
	require.NoError(t, os.WriteFile(path, []byte(referenceYAML), 0o600))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Len(t, snap.HistoricalChanges(), 3)
	assert.Len(t, snap.ScheduledChanges(), 2)

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSnapshot_ReturnsCopies(t *testing.T) {
	snap, err := ParseSnapshot([]byte(referenceYAML))
	require.NoError(t, err)
	ctx := context.Background()

	windows, _ := snap.QueryMaintenanceWindows(ctx)
	windows[0].Weekdays[0] = time.Sunday
	similar, _ := snap.QuerySimilarChanges(ctx, "Billing", models.ChangeTypeStandard)
	similar[1].IncidentDetails.Resolved = false

	windows, _ = snap.QueryMaintenanceWindows(ctx)
	assert.Equal(t, time.Tuesday, windows[0].Weekdays[0])
	similar, _ = snap.QuerySimilarChanges(ctx, "Billing", models.ChangeTypeStandard)
	assert.True(t, similar[1].IncidentDetails.Resolved)
}
