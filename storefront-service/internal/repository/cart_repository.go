package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

type cartDocument struct {
	ID        string         `bson:"_id"`
	UserID    string         `bson:"user_id,omitempty"`
	Items     []lineDocument `bson:"items"`
	Version   int64          `bson:"version"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Quantity  int                  `bson:"quantity"`
	Size      string               `bson:"size,omitempty"`
	Color     string               `bson:"color,omitempty"`
	Image     string               `bson:"image,omitempty"`
	Category  string               `bson:"category,omitempty"`
}

// CartRepository persists carts as one MongoDB document each. Saves are
// conditional on the version the caller loaded.
type CartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection("carts")}
}

func (m *CartRepository) GetCart(ctx context.Context, id string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("cart %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return fromCartDocument(&doc)
}

// SaveCart stores the cart if nobody else saved it since it was loaded and
// bumps cart.Version. A stale version yields domain.ErrVersionConflict.
func (m *CartRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	doc, err := toCartDocument(cart)
	if err != nil {
		return err
	}
	expected := cart.Version
	doc.Version = expected + 1

	if expected == 0 {
		if _, err := m.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("cart %s: %w", cart.ID, domain.ErrVersionConflict)
			}
			return fmt.Errorf("failed to insert cart: %w", err)
		}
		cart.Version = doc.Version
		return nil
	}

	filter := bson.M{"_id": cart.ID, "version": expected}
	update := bson.M{"$set": bson.M{
		"user_id":    doc.UserID,
		"items":      doc.Items,
		"version":    doc.Version,
		"updated_at": doc.UpdatedAt,
	}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("cart %s at version %d: %w", cart.ID, expected, domain.ErrVersionConflict)
	}

	cart.Version = doc.Version
	return nil
}

func (m *CartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func toCartDocument(c *domain.Cart) (*cartDocument, error) {
	doc := &cartDocument{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     make([]lineDocument, len(c.Items)),
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for i, item := range c.Items {
		price, err := primitive.ParseDecimal128(item.UnitPrice.String())
		if err != nil {
			return nil, fmt.Errorf("encode price of %s: %w", item.ProductID, err)
		}
		doc.Items[i] = lineDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: price,
			Quantity:  item.Quantity,
			Size:      item.Variant.Size,
			Color:     item.Variant.Color,
			Image:     item.Image,
			Category:  item.Category,
		}
	}
	return doc, nil
}

func fromCartDocument(doc *cartDocument) (*domain.Cart, error) {
	c := &domain.Cart{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Items:     make([]domain.LineItem, len(doc.Items)),
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for i, line := range doc.Items {
		price, err := decimal.NewFromString(line.UnitPrice.String())
		if err != nil {
			return nil, fmt.Errorf("decode price of %s: %w", line.ProductID, err)
		}
		c.Items[i] = domain.LineItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: price,
			Quantity:  line.Quantity,
			Variant:   domain.Variant{Size: line.Size, Color: line.Color},
			Image:     line.Image,
			Category:  line.Category,
		}
	}
	return c, nil
}
