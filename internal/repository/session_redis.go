package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/provpass/internal/config"
	"github.com/stemsi/provpass/internal/model"
)

// RedisSessionStore keeps each session in a hash, its answers in two companion
// hashes and every session ID in an index set. Writes go through MULTI/EXEC.
type RedisSessionStore struct {
	rdb *redis.Client
}

// NewRedisSessionStore creates a new RedisSessionStore.
func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

// ListSessions scans the index set and returns matching session headers.
func (r *RedisSessionStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	ids, err := r.rdb.SMembers(ctx, config.CacheKey.SessionIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, config.CacheKey.SessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var sessions []model.Session
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Index entry without a hash, left behind by an interrupted delete.
			continue
		}
		s := decodeRedisSession(ids[i], fields)
		if filter.Match(s) {
			sessions = append(sessions, *s)
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

// LoadSession retrieves a session hash and its answers.
func (r *RedisSessionStore) LoadSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	key := id.String()

	var header, options, answeredAt *redis.MapStringStringCmd
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		header = pipe.HGetAll(ctx, config.CacheKey.SessionKey(key))
		options = pipe.HGetAll(ctx, config.CacheKey.SessionAnswersKey(key))
		answeredAt = pipe.HGetAll(ctx, config.CacheKey.SessionAnsweredAtKey(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(header.Val()) == 0 {
		return nil, ErrNotFound
	}

	s := decodeRedisSession(key, header.Val())
	for q, opt := range options.Val() {
		n, err := strconv.Atoi(q)
		if err != nil {
			// Zero is out of range and flagged by Session.Validate.
			n = 0
		}
		a := model.Answer{QuestionNumber: n, SelectedOption: opt}
		if ts, err := strconv.ParseInt(answeredAt.Val()[q], 10, 64); err == nil {
			a.AnsweredAt = time.Unix(0, ts).UTC()
		}
		s.Answers = append(s.Answers, a)
	}
	sortAnswers(s.Answers)
	return s, nil
}

// Save writes the header and replaces both answer hashes in one MULTI/EXEC.
func (r *RedisSessionStore) Save(ctx context.Context, s *model.Session, answers []model.Answer) error {
	key := s.ID.String()
	sessionKey := config.CacheKey.SessionKey(key)
	answersKey := config.CacheKey.SessionAnswersKey(key)
	answeredAtKey := config.CacheKey.SessionAnsweredAtKey(key)

	header := map[string]any{
		"kind":              string(s.Identity.Kind),
		"pass_number":       s.Identity.PassNumber,
		"current_question":  s.CurrentQuestion,
		"time_remaining_ms": s.TimeRemaining.Milliseconds(),
		"timer_enabled":     boolFlag(s.TimerEnabled),
		"started_at":        s.StartedAt.UnixNano(),
		"last_updated":      s.LastUpdated.UnixNano(),
		"completed":         boolFlag(s.Completed),
	}
	if s.Identity.Year != nil {
		header["year"] = *s.Identity.Year
	}
	if s.Identity.Semester != nil {
		header["semester"] = string(*s.Identity.Semester)
	}

	options := make(map[string]any, len(answers))
	stamps := make(map[string]any, len(answers))
	for _, a := range answers {
		q := strconv.Itoa(a.QuestionNumber)
		options[q] = a.SelectedOption
		stamps[q] = a.AnsweredAt.UnixNano()
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey, answersKey, answeredAtKey)
		pipe.HSet(ctx, sessionKey, header)
		if len(options) > 0 {
			pipe.HSet(ctx, answersKey, options)
			pipe.HSet(ctx, answeredAtKey, stamps)
		}
		pipe.SAdd(ctx, config.CacheKey.SessionIndexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}

// Delete removes the session hashes and their index entries.
func (r *RedisSessionStore) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range idStrings(ids) {
			pipe.Del(ctx,
				config.CacheKey.SessionKey(key),
				config.CacheKey.SessionAnswersKey(key),
				config.CacheKey.SessionAnsweredAtKey(key),
			)
			pipe.SRem(ctx, config.CacheKey.SessionIndexKey(), key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Close closes the client.
func (r *RedisSessionStore) Close() error {
	return r.rdb.Close()
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// decodeRedisSession never fails: unparsable fields decode to zero values so that
// Session.Validate reports the record as malformed.
func decodeRedisSession(id string, f map[string]string) *model.Session {
	s := &model.Session{}
	s.ID, _ = uuid.Parse(id)

	pass, err := strconv.Atoi(f["pass_number"])
	if err != nil {
		pass = -1
	}
	var year, semester *string
	if v, ok := f["year"]; ok {
		year = &v
	}
	if v, ok := f["semester"]; ok {
		semester = &v
	}
	s.Identity = identityFrom(f["kind"], pass, year, semester)

	s.CurrentQuestion, _ = strconv.Atoi(f["current_question"])
	if ms, err := strconv.ParseInt(f["time_remaining_ms"], 10, 64); err == nil {
		s.TimeRemaining = time.Duration(ms) * time.Millisecond
	} else {
		s.TimeRemaining = -1
	}
	s.TimerEnabled = f["timer_enabled"] == "1"
	s.Completed = f["completed"] == "1"
	if ts, err := strconv.ParseInt(f["started_at"], 10, 64); err == nil {
		s.StartedAt = time.Unix(0, ts).UTC()
	}
	if ts, err := strconv.ParseInt(f["last_updated"], 10, 64); err == nil {
		s.LastUpdated = time.Unix(0, ts).UTC()
	}
	return s
}
