package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// StageAll asks the worker for a full pipeline run.
const StageAll = "all"

// StageMessage requests one stage run.
type StageMessage struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
	Force bool   `json:"force"`
}

func NewStageMessage(stage string, force bool) (StageMessage, error) {
	id, err := gonanoid.New()
	if err != nil {
		return StageMessage{}, err
	}
	return StageMessage{ID: id, Stage: stage, Force: force}, nil
}

func DecodeStageMessage(body []byte) (StageMessage, error) {
	var msg StageMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return StageMessage{}, fmt.Errorf("failed to decode stage message: %w", err)
	}
	if msg.Stage == "" {
		return StageMessage{}, errors.New("stage message has no stage")
	}
	return msg, nil
}

// Enqueue publishes a stage request and returns its id.
func Enqueue(ch publisher, stage string, force bool) (string, error) {
	msg, err := NewStageMessage(stage, force)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	if err := PublishFIFO(ch, StageQueue, body, nil); err != nil {
		return "", fmt.Errorf("failed to publish stage message: %w", err)
	}
	return msg.ID, nil
}
