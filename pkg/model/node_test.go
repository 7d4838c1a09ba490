package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitNodeJSONShape(t *testing.T) {
	n := ExitNode{
		DropletID:   "411000001",
		Name:        "tailscale-exit-fra1-1715678400",
		PublicIP:    "164.92.0.10",
		TailscaleIP: "100.64.0.5",
		Region:      "fra1",
		Status:      StatusHealthy,
		CreatedAt:   time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC),
		LastChecked: time.Date(2024, 5, 14, 9, 35, 0, 0, time.UTC),
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"droplet_id", "name", "public_ip", "tailscale_ip", "region", "status", "created_at", "last_checked"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "healthy", fields["status"])
	assert.Equal(t, "2024-05-14T09:30:00Z", fields["created_at"])
}

func TestExitNodeParsesPythonTimestamps(t *testing.T) {
	// State files written by the previous deployment carry +00:00 offsets.
	raw := `{"droplet_id":"1","name":"n","public_ip":"1.2.3.4","tailscale_ip":"","region":"fra1","status":"unhealthy","created_at":"2024-05-14T09:30:00.123456+00:00","last_checked":"2024-05-14T09:35:00+00:00"}`

	var n ExitNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, StatusUnhealthy, n.Status)
	assert.Equal(t, 2024, n.CreatedAt.Year())
	assert.Equal(t, 123456000, n.CreatedAt.Nanosecond())
}

func TestDropletIDConversion(t *testing.T) {
	n := ExitNode{DropletID: DropletIDString(411000001)}
	id, err := n.DropletIDInt()
	require.NoError(t, err)
	assert.Equal(t, 411000001, id)

	n.DropletID = "not-a-number"
	_, err = n.DropletIDInt()
	assert.Error(t, err)
}

func TestStatusNeedsCleanup(t *testing.T) {
	assert.False(t, StatusHealthy.NeedsCleanup())
	assert.True(t, StatusUnhealthy.NeedsCleanup())
	assert.True(t, StatusError.NeedsCleanup())
}
