package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fsanano/foodshare/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	accountsCollection  = "accounts"
	donationsCollection = "donations"
	requestsCollection  = "food_requests"
)

// MongoStore is the document-store backend. Counter updates use $inc through
// FindOneAndUpdate so concurrent increments never lose writes.
type MongoStore struct {
	client    *mongo.Client
	accounts  *mongo.Collection
	donations *mongo.Collection
	requests  *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// ConnectMongo dials uri, verifies the connection and makes sure the indexes exist.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	s := NewMongoStore(client, database)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:    client,
		accounts:  db.Collection(accountsCollection),
		donations: db.Collection(donationsCollection),
		requests:  db.Collection(requestsCollection),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "city", Value: 1}, {Key: "role", Value: 1}, {Key: "last_active", Value: -1}}},
		{Keys: bson.D{{Key: "total_orders", Value: -1}, {Key: "username", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	if _, err := s.donations.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}}); err != nil {
		return fmt.Errorf("failed to create donation indexes: %w", err)
	}
	if _, err := s.requests.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}}); err != nil {
		return fmt.Errorf("failed to create request indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateAccount(ctx context.Context, a *model.Account) error {
	if _, err := s.accounts.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("account %q: %w", a.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *MongoStore) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	var a model.Account
	if err := s.accounts.FindOne(ctx, bson.M{"username": username}).Decode(&a); err != nil {
		return nil, mongoErr("get account", err)
	}
	return &a, nil
}

func (s *MongoStore) TouchLastActive(ctx context.Context, username string, at time.Time) (*model.Account, error) {
	return s.updateAccount(ctx, "touch account", username, bson.M{"$set": bson.M{"last_active": at}})
}

func (s *MongoStore) FindActiveByCityRole(ctx context.Context, city string, role model.Role, since time.Time) ([]model.Account, error) {
	filter := bson.M{
		"city":        city,
		"role":        string(role),
		"last_active": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "last_active", Value: -1}, {Key: "username", Value: 1}})
	return s.findAccounts(ctx, "search accounts", filter, opts)
}

func (s *MongoStore) TopByOrders(ctx context.Context, limit int) ([]model.Account, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "total_orders", Value: -1}, {Key: "username", Value: 1}}).
		SetLimit(int64(limit))
	return s.findAccounts(ctx, "list leaderboard", bson.M{}, opts)
}

func (s *MongoStore) IncrementBalance(ctx context.Context, username string, amount int64, at time.Time) (*model.Account, error) {
	return s.updateAccount(ctx, "update balance", username, bson.M{
		"$inc": bson.M{"balance": amount},
		"$set": bson.M{"last_active": at},
	})
}

func (s *MongoStore) IncrementOrders(ctx context.Context, username string, at time.Time) (*model.Account, error) {
	return s.updateAccount(ctx, "update orders", username, bson.M{
		"$inc": bson.M{"total_orders": int64(1)},
		"$set": bson.M{"last_active": at},
	})
}

func (s *MongoStore) UpdateFoodDetails(ctx context.Context, username, details string, at time.Time) (*model.Account, error) {
	return s.updateAccount(ctx, "update food details", username, bson.M{
		"$set": bson.M{"food_details": details, "last_active": at},
	})
}

// CreateDonation touches the donor before inserting. Without a replica set there is no
// multi-document transaction, so a failed insert leaves the donor's refreshed last_active.
func (s *MongoStore) CreateDonation(ctx context.Context, d *model.Donation) error {
	if d.Username != "" {
		a, err := s.TouchLastActive(ctx, d.Username, d.CreatedAt)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("donor %q: %w", d.Username, ErrNotFound)
			}
			return err
		}
		d.City = a.City
	}
	if _, err := s.donations.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("failed to create donation: %w", err)
	}
	return nil
}

func (s *MongoStore) ListDonations(ctx context.Context, city string, since time.Time) ([]model.Donation, error) {
	filter := bson.M{"created_at": bson.M{"$gte": since}}
	if city != "" {
		filter["city"] = city
	}
	cur, err := s.donations.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	donations := make([]model.Donation, 0)
	if err := cur.All(ctx, &donations); err != nil {
		return nil, fmt.Errorf("failed to decode donations: %w", err)
	}
	return donations, nil
}

func (s *MongoStore) CreateRequest(ctx context.Context, r *model.FoodRequest) error {
	if _, err := s.requests.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("failed to create food request: %w", err)
	}
	return nil
}

func (s *MongoStore) ListRequests(ctx context.Context, since time.Time) ([]model.FoodRequest, error) {
	cur, err := s.requests.Find(ctx, bson.M{"created_at": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list food requests: %w", err)
	}
	requests := make([]model.FoodRequest, 0)
	if err := cur.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode food requests: %w", err)
	}
	return requests, nil
}

func (s *MongoStore) updateAccount(ctx context.Context, op, username string, update bson.M) (*model.Account, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a model.Account
	if err := s.accounts.FindOneAndUpdate(ctx, bson.M{"username": username}, update, opts).Decode(&a); err != nil {
		return nil, mongoErr(op, err)
	}
	return &a, nil
}

func (s *MongoStore) findAccounts(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]model.Account, error) {
	cur, err := s.accounts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	accounts := make([]model.Account, 0)
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return accounts, nil
}

func mongoErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
