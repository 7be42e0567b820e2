package redis

import goredis "github.com/redis/go-redis/v9"

// createVoteeScript creates the votee hash unless it exists.
// KEYS: [1]=votee hash
// ARGV: [1]=type, [2]=created_at, [3..]=ref field/value pairs
// Returns 1 on create, 0 if the key already exists.
var createVoteeScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'type', ARGV[1], 'created_at', ARGV[2],
  'up_count', 0, 'down_count', 0, 'count', 0, 'point', 0)
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

// deleteVoteeScript removes the votee, its voter sets and its entries in every
// voter's reverse index.
// KEYS: [1]=votee hash, [2]=up set, [3]=down set
// ARGV: [1]=votee id
// Returns 1 on delete, 0 if the votee does not exist.
var deleteVoteeScript = goredis.NewScript(`
local votee_type = redis.call('HGET', KEYS[1], 'type')
if not votee_type then
  return 0
end
local sets = {up = KEYS[2], down = KEYS[3]}
for dir, set in pairs(sets) do
  for _, voter in ipairs(redis.call('SMEMBERS', set)) do
    redis.call('SREM', 'voter:' .. voter .. ':' .. votee_type .. ':' .. dir, ARGV[1])
  end
end
redis.call('DEL', KEYS[1], KEYS[2], KEYS[3])
return 1
`)

// applyConditionalScript applies one vote transition if the votee has the expected
// type and the voter's membership satisfies the precondition.
// KEYS: [1]=votee hash, [2]=up set, [3]=down set, [4]=voter up index, [5]=voter down index
// ARGV: [1]=type, [2]=voter id, [3]=votee id, [4]=required set or '',
//       [5]=comma-separated forbidden sets, [6]=pull set or '', [7]=push set or '',
//       [8]=up_count delta, [9]=down_count delta, [10]=count delta, [11]=point delta
// Returns 1 if applied, 0 if the filter did not match.
var applyConditionalScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'type') ~= ARGV[1] then
  return 0
end
local sets = {up = KEYS[2], down = KEYS[3]}
local index = {up = KEYS[4], down = KEYS[5]}
local voter = ARGV[2]

if ARGV[4] ~= '' and redis.call('SISMEMBER', sets[ARGV[4]], voter) == 0 then
  return 0
end
for dir in string.gmatch(ARGV[5], '[^,]+') do
  if redis.call('SISMEMBER', sets[dir], voter) == 1 then
    return 0
  end
end

if ARGV[6] ~= '' then
  redis.call('SREM', sets[ARGV[6]], voter)
  redis.call('SREM', index[ARGV[6]], ARGV[3])
end
if ARGV[7] ~= '' then
  redis.call('SADD', sets[ARGV[7]], voter)
  redis.call('SADD', index[ARGV[7]], ARGV[3])
end
redis.call('HINCRBY', KEYS[1], 'up_count', ARGV[8])
redis.call('HINCRBY', KEYS[1], 'down_count', ARGV[9])
redis.call('HINCRBY', KEYS[1], 'count', ARGV[10])
redis.call('HINCRBY', KEYS[1], 'point', ARGV[11])
return 1
`)

// incrementScript adds counter deltas to a parent aggregate of the expected type.
// KEYS: [1]=votee hash
// ARGV: [1]=type, [2]=up_count, [3]=down_count, [4]=count, [5]=point
// Returns 1 if applied, 0 if no votee of that type exists.
var incrementScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'type') ~= ARGV[1] then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'up_count', ARGV[2])
redis.call('HINCRBY', KEYS[1], 'down_count', ARGV[3])
redis.call('HINCRBY', KEYS[1], 'count', ARGV[4])
redis.call('HINCRBY', KEYS[1], 'point', ARGV[5])
return 1
`)
