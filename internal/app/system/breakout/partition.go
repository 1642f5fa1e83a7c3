// internal/app/system/breakout/partition.go
package breakout

import (
	"github.com/chitchatclub/chitchatclub/internal/app/system/levels"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
)

// RosterEntry is one registered user plus their moderator flag, in
// registration order.
type RosterEntry struct {
	User      models.User
	Moderator bool
}

// PlannedRoom is one room the planner wants created: a 1-based index,
// the level bucket it was seeded from, and its participants in roster
// order.
type PlannedRoom struct {
	Index   int
	Bucket  models.LevelBucket
	Members []models.User
}

// PartitionPlan is the pure output of Plan: the ordered room list plus
// the moderator round-robin. ModeratorRooms[i] is the position in Rooms
// for Moderators[i]; it is empty when there are no rooms, leaving
// moderators unassigned.
type PartitionPlan struct {
	Rooms          []PlannedRoom
	Moderators     []models.User
	ModeratorRooms []int
}

// Plan partitions a roster into bounded rooms grouped by effective level.
//
// Participants are grouped by levels.Effective, buckets are visited in
// ascending bucket order with Unspecified last, and each bucket is cut
// into consecutive chunks of at most the effective capacity. Chunk
// boundaries are positional, never rebalanced, and order within a bucket
// follows the roster. Room indices are 1-based and continuous across
// buckets. When at least one moderator registered, one seat per room is
// conceptually reserved for them, so participant capacity drops by one
// (never below one). Moderators are spread round-robin over the final
// room list.
//
// Plan never fails: an empty roster yields an empty plan and a capacity
// below one is clamped to one.
func Plan(roster []RosterEntry, roomSize int) PartitionPlan {
	if roomSize < 1 {
		roomSize = 1
	}

	var plan PartitionPlan
	byBucket := make(map[models.LevelBucket][]models.User)
	for _, entry := range roster {
		if entry.Moderator {
			plan.Moderators = append(plan.Moderators, entry.User)
			continue
		}
		b := levels.Effective(entry.User)
		byBucket[b] = append(byBucket[b], entry.User)
	}

	capacity := roomSize
	if len(plan.Moderators) > 0 && roomSize > 1 {
		capacity = roomSize - 1
	}

	index := 1
	for _, bucket := range models.LevelBuckets {
		users := byBucket[bucket]
		for start := 0; start < len(users); start += capacity {
			end := start + capacity
			if end > len(users) {
				end = len(users)
			}
			plan.Rooms = append(plan.Rooms, PlannedRoom{
				Index:   index,
				Bucket:  bucket,
				Members: users[start:end],
			})
			index++
		}
	}

	if len(plan.Rooms) > 0 {
		plan.ModeratorRooms = make([]int, len(plan.Moderators))
		for i := range plan.Moderators {
			plan.ModeratorRooms[i] = i % len(plan.Rooms)
		}
	}

	return plan
}
