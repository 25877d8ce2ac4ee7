package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
)

const commanderSetKey = "commanders"

// Key pattern for a commander record.
func commanderKey(id string) string { return "commander:" + id }

// SaveCommander stores the record and indexes its id.
func (c *Client) SaveCommander(ctx context.Context, rec battle.CommanderRecord) error {
	if rec.ID == "" {
		return errors.New("save commander: empty id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal commander: %w", err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, commanderKey(rec.ID), data, 0)
	pipe.SAdd(ctx, commanderSetKey, rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save commander %s: %w", rec.ID, err)
	}
	return nil
}

// LoadCommander returns one record, or nil when the id is unknown.
func (c *Client) LoadCommander(ctx context.Context, id string) (*battle.CommanderRecord, error) {
	data, err := c.rdb.Get(ctx, commanderKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get commander: %w", err)
	}
	var rec battle.CommanderRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode commander %s: %w", id, err)
	}
	return &rec, nil
}

// LoadAll returns every stored record. Corrupt entries and ids whose record
// has gone are skipped.
func (c *Client) LoadAll(ctx context.Context) ([]battle.CommanderRecord, error) {
	ids, err := c.rdb.SMembers(ctx, commanderSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list commanders: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = commanderKey(id)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get commanders: %w", err)
	}

	out := make([]battle.CommanderRecord, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var rec battle.CommanderRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			log.Warn().Err(err).Str("commander", ids[i]).Msg("Skipping corrupt commander record")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteCommander removes a record and its index entry.
func (c *Client) DeleteCommander(ctx context.Context, id string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, commanderKey(id))
	pipe.SRem(ctx, commanderSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete commander %s: %w", id, err)
	}
	return nil
}
