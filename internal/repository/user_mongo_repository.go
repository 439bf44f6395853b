package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/storefront/internal/model"
)

// UsersCollection holds one document per account.
const UsersCollection = "usuarios"

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	FirstName    string             `bson:"nombre"`
	LastName     string             `bson:"apellido,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
	Role         string             `bson:"rol"`
	IsActive     bool               `bson:"activo"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

// toModel maps a stored document to a User.  Accounts written by the
// older storefront carry rol "cliente", which reads back as customer.
func (d userDocument) toModel() model.User {
	return model.User{
		ID:           d.ID.Hex(),
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         model.NormalizeRole(d.Role),
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// UserMongoRepo stores identities in a MongoDB collection.
type UserMongoRepo struct {
	collection *mongo.Collection
}

func NewUserMongoRepo(db *mongo.Database) *UserMongoRepo {
	return &UserMongoRepo{collection: db.Collection(UsersCollection)}
}

// CreateIndexes creates the unique email index that backs ErrEmailExists.
func (r *UserMongoRepo) CreateIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "rol", Value: 1}},
			Options: options.Index().SetName("rol"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (r *UserMongoRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := userDocument{
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        model.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         model.NormalizeRole(u.Role),
		IsActive:     u.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toModel(), nil
}

func (r *UserMongoRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, bson.M{"email": model.NormalizeEmail(email)})
}

func (r *UserMongoRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserMongoRepo) HasAdmin(ctx context.Context) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"rol": model.RoleAdmin}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	return n > 0, nil
}

func (r *UserMongoRepo) UpdateRole(ctx context.Context, id, role string) (model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, ErrUserNotFound
	}
	var doc userDocument
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"rol": model.NormalizeRole(role), "updatedAt": time.Now().UTC().Truncate(time.Millisecond)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to update role: %w", err)
	}
	return doc.toModel(), nil
}

func (r *UserMongoRepo) findOne(ctx context.Context, filter bson.M) (model.User, error) {
	var doc userDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toModel(), nil
}
