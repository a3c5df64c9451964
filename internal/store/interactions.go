package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (d *DB) AddInteraction(ctx context.Context, in Interaction) (Interaction, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = d.now().UTC()
	}
	data, err := marshalJSON(in.InteractionData)
	if err != nil {
		return Interaction{}, fmt.Errorf("encode interaction data: %w", err)
	}
	_, err = d.db.ExecContext(ctx, d.q(`INSERT INTO user_interactions
		(id, submission_id, interaction_type, step_name, time_spent, interaction_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		in.ID, in.SubmissionID, in.InteractionType, in.StepName, in.TimeSpent, data, timeToString(in.CreatedAt))
	if err != nil {
		return Interaction{}, fmt.Errorf("insert interaction: %w", err)
	}
	return in, nil
}

func (d *DB) ListInteractions(ctx context.Context, submissionID string) ([]Interaction, error) {
	var rows []struct {
		ID              string `db:"id"`
		SubmissionID    string `db:"submission_id"`
		InteractionType string `db:"interaction_type"`
		StepName        string `db:"step_name"`
		TimeSpent       int64  `db:"time_spent"`
		InteractionData string `db:"interaction_data"`
		CreatedAt       string `db:"created_at"`
	}
	err := d.db.SelectContext(ctx, &rows, d.q(`SELECT id, submission_id, interaction_type, step_name, time_spent, interaction_data, created_at
		FROM user_interactions WHERE submission_id = ? ORDER BY created_at ASC, id ASC`), submissionID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	out := make([]Interaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, Interaction{
			ID:              r.ID,
			SubmissionID:    r.SubmissionID,
			InteractionType: r.InteractionType,
			StepName:        r.StepName,
			TimeSpent:       r.TimeSpent,
			InteractionData: unmarshalJSON(r.InteractionData),
			CreatedAt:       stringToTime(r.CreatedAt),
		})
	}
	return out, nil
}
