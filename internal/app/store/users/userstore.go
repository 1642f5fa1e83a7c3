// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/chitchatclub/chitchatclub/internal/app/system/normalize"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadRole        = errors.New(`role must be "member"|"moderator"|"admin"|"superadmin"`)
	errBadScale       = errors.New("unknown english level type")
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads the users for a set of IDs, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Create inserts a new user after normalizing and validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	if u.Status == "" {
		u.Status = "active"
	}

	switch u.Role {
	case models.RoleMember, models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin:
		// ok
	default:
		return models.User{}, errBadRole
	}

	if u.EnglishLevelType != "" && !models.IsValidLevelScale(string(u.EnglishLevelType)) {
		return models.User{}, errBadScale
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// UpdateProfile updates a user's display name.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName string) error {
	fullName = normalize.Name(fullName)
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"full_name":    fullName,
		"full_name_ci": text.Fold(fullName),
		"updated_at":   time.Now().UTC(),
	}})
	return err
}

// UpdateLevel replaces a user's self-reported English level.
func (s *Store) UpdateLevel(ctx context.Context, id primitive.ObjectID, scale models.LevelScale, value string) error {
	if !models.IsValidLevelScale(string(scale)) {
		return errBadScale
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"english_level_type":  scale,
		"english_level_value": value,
		"updated_at":          time.Now().UTC(),
	}})
	return err
}

// SetOverride sets or clears an admin proficiency override. A nil bucket
// clears the override so normalization applies again.
func (s *Store) SetOverride(ctx context.Context, id primitive.ObjectID, bucket *models.LevelBucket) error {
	now := time.Now().UTC()
	var update bson.M
	if bucket == nil {
		update = bson.M{
			"$unset": bson.M{"proficiency_override": ""},
			"$set":   bson.M{"updated_at": now},
		}
	} else {
		update = bson.M{"$set": bson.M{
			"proficiency_override": *bucket,
			"updated_at":           now,
		}}
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// SetRole changes a user's role.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	switch role {
	case models.RoleMember, models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin:
	default:
		return errBadRole
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"role":       role,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// UpdatePassword replaces a user's password hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	}})
	return err
}

// MarkVerified flags the user's email address as verified.
func (s *Store) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"email_verified": true,
		"updated_at":     time.Now().UTC(),
	}})
	return err
}

// IncNoShow increments the no-show counter and returns the new count.
func (s *Store) IncNoShow(ctx context.Context, id primitive.ObjectID) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"no_show_count": 1}},
		opts,
	).Decode(&u)
	if err != nil {
		return 0, err
	}
	return u.NoShowCount, nil
}

// SetBlacklist blocks the user from registering until the given time.
func (s *Store) SetBlacklist(ctx context.Context, id primitive.ObjectID, until time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"blacklisted_until": until,
		"updated_at":        time.Now().UTC(),
	}})
	return err
}

// ClearBlacklist lifts a registration block and resets the no-show counter.
func (s *Store) ClearBlacklist(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{"blacklisted_until": ""},
		"$set": bson.M{
			"no_show_count": 0,
			"updated_at":    time.Now().UTC(),
		},
	})
	return err
}

// Search returns users whose folded name or email contains the query,
// sorted by name, up to limit. An empty query lists all users.
func (s *Store) Search(ctx context.Context, query string, limit int64) ([]models.User, error) {
	filter := bson.M{}
	if q := text.Fold(normalize.QueryParam(query)); q != "" {
		pattern := regexp.QuoteMeta(q)
		filter = bson.M{"$or": bson.A{
			bson.M{"full_name_ci": bson.M{"$regex": pattern}},
			bson.M{"email": bson.M{"$regex": pattern}},
		}}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "full_name_ci", Value: 1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
