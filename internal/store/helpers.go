package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"leadsim/internal/models"
)

// marshalMessages serializes a transcript's message log for the messages_json
// column.
func marshalMessages(msgs []models.Message) (string, error) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("marshal transcript messages: %w", err)
	}
	return string(raw), nil
}

// scanTranscripts reads transcript rows, decoding the serialized message log.
func scanTranscripts(rows *sql.Rows) ([]models.Transcript, error) {
	var out []models.Transcript
	for rows.Next() {
		var t models.Transcript
		var workflow, finalState, messagesJSON string
		if err := rows.Scan(&t.ID, &workflow, &finalState, &t.MessageCount, &messagesJSON, &t.StartedAt, &t.EndedAt); err != nil {
			return nil, fmt.Errorf("scan transcript failed: %w", err)
		}
		t.Workflow = models.Workflow(workflow)
		t.FinalState = models.ConversationState(finalState)
		if err := json.Unmarshal([]byte(messagesJSON), &t.Messages); err != nil {
			return nil, fmt.Errorf("decode transcript messages: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
