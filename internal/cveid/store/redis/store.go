// Package redis stores ranges and identifiers in Redis. Conditional updates
// run as Lua scripts so each one is atomic on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cveregistry/internal/cveid/models"
	"cveregistry/pkg/platform/sentinel"
)

// Key layout.
const (
	rangeKeyPrefix     = "cveid:range:"
	identifierPrefix   = "cveid:id:"
	availableKeyPrefix = "cveid:available:"
	reservedKeyPrefix  = "cveid:reserved:"
)

func rangeKey(year int) string { return rangeKeyPrefix + strconv.Itoa(year) }
func identifierKey(id string) string { return identifierPrefix + id }
func availableKey(year int) string { return availableKeyPrefix + strconv.Itoa(year) }
func reservedKey(owner string) string { return reservedKeyPrefix + owner }

var createRangeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// Returns {prev, new, end}, or nil when the year is missing.
var extendTopScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
local top = tonumber(redis.call('HGET', KEYS[1], 'general_top_id'))
local last = tonumber(redis.call('HGET', KEYS[1], 'general_end'))
local inc = tonumber(ARGV[1])
local new = top
if inc > 0 and top < last then
	new = math.min(top + inc, last)
	redis.call('HSET', KEYS[1], 'general_top_id', new)
end
return {top, new, last}
`)

// KEYS[1..n] are identifier keys, KEYS[n+1..2n] the matching available sets.
// ARGV[1] is n followed by seven fields per identifier.
var insertAvailableScript = redis.NewScript(`
local n = tonumber(ARGV[1])
for i = 1, n do
	if redis.call('EXISTS', KEYS[i]) == 1 then
		return 0
	end
end
for i = 1, n do
	local b = 1 + (i - 1) * 7
	redis.call('HSET', KEYS[i],
		'cve_year', ARGV[b + 2],
		'state', ARGV[b + 3],
		'owning_cna', ARGV[b + 4],
		'requested_cna', ARGV[b + 5],
		'requested_user', ARGV[b + 6],
		'reserved', ARGV[b + 7])
	if ARGV[b + 3] == 'AVAILABLE' then
		redis.call('SADD', KEYS[n + i], ARGV[b + 1])
	end
end
return 1
`)

var claimScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'AVAILABLE' then
	return 0
end
redis.call('HSET', KEYS[1],
	'state', 'RESERVED',
	'owning_cna', ARGV[2],
	'requested_cna', ARGV[3],
	'requested_user', ARGV[4],
	'reserved', ARGV[5])
redis.call('SREM', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

// RedisStore implements ports.RangeStore and ports.IdentifierStore.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed identifier store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) FindRange(ctx context.Context, year int) (*models.YearRange, error) {
	fields, err := s.client.HGetAll(ctx, rangeKey(year)).Result()
	if err != nil {
		return nil, fmt.Errorf("find range %d: %w", year, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("range %d: %w", year, sentinel.ErrNotFound)
	}
	return decodeRange(year, fields)
}

func (s *RedisStore) CreateRange(ctx context.Context, yr *models.YearRange) error {
	created, err := createRangeScript.Run(ctx, s.client, []string{rangeKey(yr.Year)},
		"priority_start", yr.Priority.Start,
		"priority_end", yr.Priority.End,
		"priority_top_id", yr.Priority.TopID,
		"general_start", yr.General.Start,
		"general_end", yr.General.End,
		"general_top_id", yr.General.TopID,
	).Int()
	if err != nil {
		return fmt.Errorf("create range %d: %w", yr.Year, err)
	}
	if created == 0 {
		return fmt.Errorf("range %d: %w", yr.Year, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) ExtendTop(ctx context.Context, year int, increment int64) (models.TopUpdate, error) {
	vals, err := extendTopScript.Run(ctx, s.client, []string{rangeKey(year)}, increment).Int64Slice()
	if errors.Is(err, redis.Nil) {
		return models.TopUpdate{}, fmt.Errorf("range %d: %w", year, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.TopUpdate{}, fmt.Errorf("extend range %d: %w", year, err)
	}
	if len(vals) != 3 {
		return models.TopUpdate{}, fmt.Errorf("extend range %d: unexpected reply %v", year, vals)
	}
	return models.TopUpdate{PrevTopID: vals[0], NewTopID: vals[1], End: vals[2]}, nil
}

func (s *RedisStore) InsertAvailable(ctx context.Context, ids []models.Identifier) error {
	if len(ids) == 0 {
		return nil
	}
	n := len(ids)
	keys := make([]string, 2*n)
	args := make([]any, 0, 1+7*n)
	args = append(args, n)
	for i, id := range ids {
		keys[i] = identifierKey(id.ID)
		keys[n+i] = availableKey(id.Year)
		args = append(args,
			id.ID,
			id.Year,
			string(id.State),
			id.OwningOrg,
			id.RequestedBy.Org,
			id.RequestedBy.User,
			id.ReservedAt.UTC().Format(time.RFC3339Nano),
		)
	}
	inserted, err := insertAvailableScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("insert identifiers: %w", err)
	}
	if inserted == 0 {
		return fmt.Errorf("insert identifiers: %w", sentinel.ErrConflict)
	}
	return nil
}

// FindAvailable samples distinct members of the year's available set. A
// member claimed between the sample and the read is skipped.
func (s *RedisStore) FindAvailable(ctx context.Context, year int, limit int) ([]models.Identifier, error) {
	if limit <= 0 {
		return nil, nil
	}
	tokens, err := s.client.SRandMemberN(ctx, availableKey(year), int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("find available %d: %w", year, err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(tokens))
	for i, token := range tokens {
		cmds[i] = pipe.HGetAll(ctx, identifierKey(token))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read available %d: %w", year, err)
	}

	out := make([]models.Identifier, 0, len(tokens))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		doc, err := decodeIdentifier(tokens[i], fields)
		if err != nil {
			return nil, err
		}
		if doc.State == models.StateAvailable {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *RedisStore) ClaimAvailable(ctx context.Context, id string, owningOrg string, requester models.RequestedBy, at time.Time) (*models.Identifier, error) {
	year, _, err := models.ParseID(id)
	if err != nil {
		return nil, nil
	}
	at = at.UTC()
	won, err := claimScript.Run(ctx, s.client,
		[]string{identifierKey(id), availableKey(year), reservedKey(owningOrg)},
		id, owningOrg, requester.Org, requester.User, at.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", id, err)
	}
	if won == 0 {
		return nil, nil
	}
	return &models.Identifier{
		ID:          id,
		Year:        year,
		State:       models.StateReserved,
		OwningOrg:   owningOrg,
		RequestedBy: requester,
		ReservedAt:  at,
	}, nil
}

func (s *RedisStore) CountReserved(ctx context.Context, owningOrg string) (int, error) {
	n, err := s.client.SCard(ctx, reservedKey(owningOrg)).Result()
	if err != nil {
		return 0, fmt.Errorf("count reserved for %s: %w", owningOrg, err)
	}
	return int(n), nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*models.Identifier, error) {
	fields, err := s.client.HGetAll(ctx, identifierKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("find identifier %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("identifier %s: %w", id, sentinel.ErrNotFound)
	}
	return decodeIdentifier(id, fields)
}

func decodeRange(year int, fields map[string]string) (*models.YearRange, error) {
	yr := &models.YearRange{Year: year}
	targets := map[string]*int64{
		"priority_start":  &yr.Priority.Start,
		"priority_end":    &yr.Priority.End,
		"priority_top_id": &yr.Priority.TopID,
		"general_start":   &yr.General.Start,
		"general_end":     &yr.General.End,
		"general_top_id":  &yr.General.TopID,
	}
	for field, dst := range targets {
		v, err := strconv.ParseInt(fields[field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("range %d field %s: %w", year, field, sentinel.ErrInvalidState)
		}
		*dst = v
	}
	return yr, nil
}

func decodeIdentifier(id string, fields map[string]string) (*models.Identifier, error) {
	year, err := strconv.Atoi(fields["cve_year"])
	if err != nil {
		return nil, fmt.Errorf("identifier %s year: %w", id, sentinel.ErrInvalidState)
	}
	reserved, err := time.Parse(time.RFC3339Nano, fields["reserved"])
	if err != nil {
		return nil, fmt.Errorf("identifier %s reserved: %w", id, sentinel.ErrInvalidState)
	}
	return &models.Identifier{
		ID:        id,
		Year:      year,
		State:     models.State(fields["state"]),
		OwningOrg: fields["owning_cna"],
		RequestedBy: models.RequestedBy{
			Org:  fields["requested_cna"],
			User: fields["requested_user"],
		},
		ReservedAt: reserved,
	}, nil
}
