package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"hookline/internal/platform/models"
)

// MeetingUpdate carries the fields a single provider event knows about.
// Nil fields keep their stored value.
type MeetingUpdate struct {
	RoomName              string
	Status                *string
	StartedAt             *time.Time
	EndedAt               *time.Time
	RecordingID           *string
	RecordingURL          *string
	RecordingDurationSecs *int
}

type MeetingRepository struct {
	db *sql.DB
}

func NewMeetingRepository(db *sql.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// Upsert applies u to the meeting keyed by room name and returns its id.
func (r *MeetingRepository) Upsert(ctx context.Context, u MeetingUpdate) (string, error) {
	now := toMillis(time.Now())

	var status, recordingID, recordingURL sql.NullString
	if u.Status != nil {
		status = sql.NullString{String: *u.Status, Valid: true}
	}
	if u.RecordingID != nil {
		recordingID = sql.NullString{String: *u.RecordingID, Valid: true}
	}
	if u.RecordingURL != nil {
		recordingURL = sql.NullString{String: *u.RecordingURL, Valid: true}
	}
	var duration sql.NullInt64
	if u.RecordingDurationSecs != nil {
		duration = sql.NullInt64{Int64: int64(*u.RecordingDurationSecs), Valid: true}
	}

	query := `
		INSERT INTO meetings (id, room_name, status, started_at, ended_at, recording_id, recording_url, recording_duration_secs, created_at, updated_at)
		VALUES (?, ?, COALESCE(?, 'scheduled'), ?, ?, ?, ?, COALESCE(?, 0), ?, ?)
		ON CONFLICT(room_name) DO UPDATE SET
			status = COALESCE(?, meetings.status),
			started_at = COALESCE(excluded.started_at, meetings.started_at),
			ended_at = COALESCE(excluded.ended_at, meetings.ended_at),
			recording_id = COALESCE(excluded.recording_id, meetings.recording_id),
			recording_url = COALESCE(excluded.recording_url, meetings.recording_url),
			recording_duration_secs = COALESCE(?, meetings.recording_duration_secs),
			updated_at = excluded.updated_at
		RETURNING id
	`
	var id string
	err := r.db.QueryRowContext(ctx, query,
		"mtg_"+uuid.New().String(),
		u.RoomName,
		status,
		nullMillis(u.StartedAt),
		nullMillis(u.EndedAt),
		recordingID,
		recordingURL,
		duration,
		now,
		now,
		status,
		duration,
	).Scan(&id)
	return id, err
}

func (r *MeetingRepository) GetByRoomName(ctx context.Context, roomName string) (*models.Meeting, error) {
	var m models.Meeting
	var startedAt, endedAt sql.NullInt64
	var recordingID, recordingURL sql.NullString
	var createdAt, updatedAt int64

	err := r.db.QueryRowContext(ctx, `
		SELECT id, room_name, status, started_at, ended_at, recording_id, recording_url, recording_duration_secs, created_at, updated_at
		FROM meetings WHERE room_name = ?
	`, roomName).Scan(&m.ID, &m.RoomName, &m.Status, &startedAt, &endedAt, &recordingID, &recordingURL, &m.RecordingDurationSecs, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	m.StartedAt = timePtr(startedAt)
	m.EndedAt = timePtr(endedAt)
	m.RecordingID = recordingID.String
	m.RecordingURL = recordingURL.String
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return &m, nil
}
