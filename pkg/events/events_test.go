package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitRecordsEvent(t *testing.T) {
	pub := &MemoryPublisher{}
	Emit(context.Background(), pub, SubjectPointsAwarded, 7, PointsAwarded{Amount: 20, Source: "quiz", SourceID: 3})
	Emit(context.Background(), pub, SubjectCourseCompleted, 7, CourseCompleted{CourseID: 1})

	got := pub.Events(SubjectPointsAwarded)
	require.Len(t, got, 1)
	assert.Equal(t, uint(7), got[0].UserID)
	assert.Equal(t, PointsAwarded{Amount: 20, Source: "quiz", SourceID: 3}, got[0].Payload)
	assert.False(t, got[0].OccurredAt.IsZero())
	assert.Len(t, pub.Events(""), 2)
}

func TestEmitNilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, SubjectCourseCompleted, 1, nil)
	})
}

func TestNATSPublisherSubject(t *testing.T) {
	p := &NATSPublisher{prefix: "ledger"}
	assert.Equal(t, "ledger.points.awarded", p.subject(SubjectPointsAwarded))
	p.prefix = ""
	assert.Equal(t, "points.awarded", p.subject(SubjectPointsAwarded))
}
