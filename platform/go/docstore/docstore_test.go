package docstore

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/require"
)

func TestApplyToDoc(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	doc := map[string]any{
		"status":       "completed",
		"errorMessage": "boom",
	}

	ApplyToDoc(doc, []Update{
		Set("status", "processing"),
		Del("errorMessage"),
		Stamp("lastRun"),
	}, now)

	require.Equal(t, "processing", doc["status"])
	require.NotContains(t, doc, "errorMessage")
	require.Equal(t, now, doc["lastRun"])
}

func TestApplyToDocDeleteMissingFieldIsNoop(t *testing.T) {
	doc := map[string]any{"status": "idle"}
	ApplyToDoc(doc, []Update{Del("resultFileUrl")}, time.Now())
	require.Equal(t, map[string]any{"status": "idle"}, doc)
}

func TestToFirestoreSentinels(t *testing.T) {
	got := ToFirestore([]Update{
		Set("status", "error"),
		Del("resultFileUrl"),
		Stamp("lastRun"),
	})

	require.Equal(t, []firestore.Update{
		{Path: "status", Value: "error"},
		{Path: "resultFileUrl", Value: firestore.Delete},
		{Path: "lastRun", Value: firestore.ServerTimestamp},
	}, got)
}
