package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"price-history-api/internal/metrics"
	"price-history-api/internal/models"
)

const (
	readTimeout  = 3 * time.Second
	writeTimeout = 5 * time.Second
	listTimeout  = 10 * time.Second
)

type ProductRepository struct {
	collection   *mongo.Collection
	logger       *zap.Logger
	validate     *validator.Validate
	uniqueUPC    bool
	historyDedup bool
}

type Option func(*ProductRepository)

func WithLogger(logger *zap.Logger) Option {
	return func(r *ProductRepository) {
		r.logger = logger
	}
}

// WithUniqueUPC hace que EnsureIndexes cree un índice único sobre upc
func WithUniqueUPC(enabled bool) Option {
	return func(r *ProductRepository) {
		r.uniqueUPC = enabled
	}
}

// WithHistoryDedup evita agregar una entrada idéntica (store, price, was_price
// y valid_to) a una que ya está en el historial
func WithHistoryDedup(enabled bool) Option {
	return func(r *ProductRepository) {
		r.historyDedup = enabled
	}
}

func NewProductRepository(collection *mongo.Collection, opts ...Option) *ProductRepository {
	r := &ProductRepository{
		collection: collection,
		logger:     zap.NewNop(),
		validate:   newValidator(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "repository"))
	return r
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// una fecha vacía cuenta como ausente para "required"
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(models.Date); ok && !d.IsZero() {
			return d.Time
		}
		return nil
	}, models.Date{})
	return v
}

// EnsureIndexes crea los índices que usa el catálogo
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "history.valid_to", Value: -1}},
			Options: options.Index().SetName("history_valid_to"),
		},
	}
	if r.uniqueUPC {
		indexes = append(indexes, mongo.IndexModel{
			Keys: bson.D{{Key: "upc", Value: 1}},
			Options: options.Index().
				SetName("upc_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"upc": bson.M{"$type": "string"}}),
		})
	}

	names, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	r.logger.Info("indexes ensured", zap.Strings("indexes", names))
	return nil
}

// Create inserta un nuevo producto y le asigna su ID
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) (err error) {
	defer r.observe("create", time.Now(), &err)

	product.Normalize()
	if err := r.validate.Struct(product); err != nil {
		return newValidationError(err)
	}
	models.AssignEntryIDs(product.History)

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	product.ID = primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, product); err != nil {
		product.ID = primitive.NilObjectID
		if mongo.IsDuplicateKeyError(err) {
			return &DuplicateKeyError{Key: "upc", err: err}
		}
		return fmt.Errorf("insert product: %w", err)
	}

	r.logger.Debug("product created", zap.String("id", product.ID.Hex()), zap.String("upc", product.UPC))
	return nil
}

// FindAll lista productos paginados, los de precio más reciente primero
func (r *ProductRepository) FindAll(ctx context.Context, page, perPage int, search string) (products []models.Product, err error) {
	defer r.observe("find_all", time.Now(), &err)

	if err := validatePaging(page, perPage); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	findOptions := options.Find().
		SetSort(listSort()).
		SetSkip(skipFor(page, perPage)).
		SetLimit(int64(perPage))

	cursor, err := r.collection.Find(ctx, searchFilter(search), findOptions)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	products = make([]models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	for i := range products {
		products[i].Normalize()
	}

	return products, nil
}

// FindByID obtiene un producto por ID o por UPC
func (r *ProductRepository) FindByID(ctx context.Context, id string) (_ *models.Product, err error) {
	defer r.observe("find_by_id", time.Now(), &err)

	filter, err := identifierFilter(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var product models.Product
	if err := r.collection.FindOne(ctx, filter).Decode(&product); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	product.Normalize()

	return &product, nil
}

// Update aplica un $set con los campos presentes; history solo cambia si viene explícito
func (r *ProductRepository) Update(ctx context.Context, id string, update *models.ProductUpdate) (err error) {
	defer r.observe("update", time.Now(), &err)

	filter, err := identifierFilter(id)
	if err != nil {
		return err
	}
	if update == nil {
		return ErrNoUpdateFields
	}
	if err := r.validate.Struct(update); err != nil {
		return newValidationError(err)
	}

	set := update.Fields()
	if len(set) == 0 {
		return ErrNoUpdateFields
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &DuplicateKeyError{Key: "upc", err: err}
		}
		return fmt.Errorf("update product %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}

	r.logger.Debug("product updated", zap.String("id", id), zap.Int64("modified", result.ModifiedCount))
	return nil
}

// AddHistory agrega una entrada al final del historial de precios.
// Con dedup activo devuelve false sin error si la entrada ya existía.
func (r *ProductRepository) AddHistory(ctx context.Context, id string, entry *models.PriceEntry) (appended bool, err error) {
	defer r.observe("add_history", time.Now(), &err)

	filter, err := identifierFilter(id)
	if err != nil {
		return false, err
	}
	if err := r.validate.Struct(entry); err != nil {
		return false, newValidationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	entry.ID = primitive.NewObjectID()

	updateFilter := bson.M{}
	for k, v := range filter {
		updateFilter[k] = v
	}
	if r.historyDedup {
		updateFilter["history"] = bson.M{"$not": bson.M{"$elemMatch": sameEntry(entry)}}
	}

	result, err := r.collection.UpdateOne(ctx, updateFilter, bson.M{"$push": bson.M{"history": entry}})
	if err != nil {
		entry.ID = primitive.NilObjectID
		return false, fmt.Errorf("push price history for %s: %w", id, err)
	}
	if result.MatchedCount > 0 {
		r.logger.Debug("price history added", zap.String("id", id), zap.String("entry", entry.ID.Hex()))
		return true, nil
	}

	entry.ID = primitive.NilObjectID
	if !r.historyDedup {
		return false, ErrProductNotFound
	}

	// sin match: o no existe el producto o la entrada ya estaba
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count product %s: %w", id, err)
	}
	if count == 0 {
		return false, ErrProductNotFound
	}

	r.logger.Debug("duplicate price history skipped", zap.String("id", id))
	return false, nil
}

// RemoveHistory quita la entrada con el ID dado. Un ID inexistente no es un error.
func (r *ProductRepository) RemoveHistory(ctx context.Context, id, historyID string) (removed bool, err error) {
	defer r.observe("remove_history", time.Now(), &err)

	filter, err := identifierFilter(id)
	if err != nil {
		return false, err
	}
	entryID, err := primitive.ObjectIDFromHex(historyID)
	if err != nil {
		return false, ErrInvalidHistoryID
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$pull": bson.M{"history": bson.M{"_id": entryID}}})
	if err != nil {
		return false, fmt.Errorf("pull price history %s from %s: %w", historyID, id, err)
	}
	if result.MatchedCount == 0 {
		return false, ErrProductNotFound
	}

	return result.ModifiedCount > 0, nil
}

// Delete elimina el producto junto con su historial. Devuelve cuántos documentos borró.
func (r *ProductRepository) Delete(ctx context.Context, id string) (_ int64, err error) {
	defer r.observe("delete", time.Now(), &err)

	filter, err := identifierFilter(id)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete product %s: %w", id, err)
	}

	r.logger.Debug("product deleted", zap.String("id", id), zap.Int64("deleted", result.DeletedCount))
	return result.DeletedCount, nil
}

func sameEntry(entry *models.PriceEntry) bson.M {
	match := bson.M{
		"store":    entry.Store,
		"price":    entry.Price,
		"valid_to": entry.ValidTo,
	}
	if entry.WasPrice != nil {
		match["was_price"] = *entry.WasPrice
	} else {
		match["was_price"] = bson.M{"$exists": false}
	}
	return match
}

func (r *ProductRepository) observe(operation string, start time.Time, errp *error) {
	outcome := metrics.OutcomeOK
	if err := *errp; err != nil {
		switch {
		case errors.Is(err, ErrProductNotFound):
			outcome = metrics.OutcomeNotFound
		case isRejection(err):
			outcome = metrics.OutcomeRejected
		default:
			outcome = metrics.OutcomeError
			r.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		}
	}
	metrics.RecordStoreOperation(operation, outcome, time.Since(start))
}

func isRejection(err error) bool {
	var argErr *ArgumentError
	var validationErr *ValidationError
	var dupErr *DuplicateKeyError
	return errors.As(err, &argErr) ||
		errors.As(err, &validationErr) ||
		errors.As(err, &dupErr) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidHistoryID)
}
