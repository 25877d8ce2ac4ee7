package repository

import (
	"context"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
)

// CommanderRepository persists commander memory between sessions.
type CommanderRepository interface {
	SaveCommander(ctx context.Context, rec battle.CommanderRecord) error
	LoadCommander(ctx context.Context, id string) (*battle.CommanderRecord, error)
	LoadAll(ctx context.Context) ([]battle.CommanderRecord, error)
	DeleteCommander(ctx context.Context, id string) error
}
