// internal/app/system/breakout/export.go
package breakout

import (
	"context"
	"encoding/csv"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role values used in the roster export.
const (
	exportRoleModerator   = "Moderator"
	exportRoleParticipant = "Participant"
)

var exportHeader = []string{
	"Room Index",
	"Level Bucket",
	"Role",
	"Name",
	"Email",
	"English Level Type",
	"English Level Value",
	"Proficiency Level",
	"Override",
}

// ExportCSV renders the session's current breakout layout as CSV, one
// row per person, moderators before participants within each room.
func (e *Engine) ExportCSV(ctx context.Context, sessionID primitive.ObjectID) (string, error) {
	rooms, err := e.ListRooms(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return RenderCSV(rooms)
}

// RenderCSV turns room views into the roster CSV.
func RenderCSV(rooms []RoomView) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(exportHeader); err != nil {
		return "", err
	}
	for _, room := range rooms {
		for _, u := range room.Moderators {
			if err := w.Write(exportRow(room, u, exportRoleModerator)); err != nil {
				return "", err
			}
		}
		for _, u := range room.Members {
			if err := w.Write(exportRow(room, u, exportRoleParticipant)); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func exportRow(room RoomView, u UserView, role string) []string {
	return []string{
		strconv.Itoa(room.RoomIndex),
		room.LevelBucket,
		role,
		u.FullName,
		u.Email,
		string(u.EnglishLevelType),
		u.EnglishLevelValue,
		u.ProficiencyLevel,
		u.Override,
	}
}
