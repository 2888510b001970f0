package repository

import (
	"context"
	"errors"
	"time"

	"mpesa-service/internal/apperrors"
	"mpesa-service/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"
)

// transactionDocument is the stored shape. The checkout request id doubles as
// _id so uniqueness is enforced by the primary index.
type transactionDocument struct {
	CheckoutRequestID    string               `bson:"_id"`
	MerchantRequestID    string               `bson:"merchant_request_id"`
	Status               string               `bson:"status"`
	ResultCode           *int                 `bson:"result_code"`
	ResultDescription    string               `bson:"result_description"`
	Amount               primitive.Decimal128 `bson:"amount"`
	ReceiptNumber        *string              `bson:"receipt_number"`
	TransactionTimestamp *string              `bson:"transaction_timestamp"`
	PayerPhone           string               `bson:"payer_phone"`
	RecipientPhone       string               `bson:"recipient_phone"`
	RawCallbackPayload   bson.Raw             `bson:"raw_callback_payload,omitempty"`
	CreatedAt            time.Time            `bson:"created_at"`
	UpdatedAt            time.Time            `bson:"updated_at"`
}

type MongoTransactionStore struct {
	Collection *mongo.Collection
	now        func() time.Time
}

func NewMongoTransactionStore(db *mongo.Database) *MongoTransactionStore {
	return &MongoTransactionStore{
		Collection: db.Collection("transactions"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the secondary indexes used by listing and the sweeper.
func (s *MongoTransactionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	return err
}

func (s *MongoTransactionStore) Create(ctx context.Context, trx *models.Transaction) error {
	now := s.now()
	if trx.Status == "" {
		trx.Status = models.StatusPending
	}
	trx.CreatedAt, trx.UpdatedAt = now, now

	doc, err := toDocument(trx)
	if err != nil {
		return apperrors.Persistence("create", err)
	}

	_, err = s.Collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return &apperrors.ConflictError{CheckoutRequestID: trx.CheckoutRequestID}
	}
	if err != nil {
		return apperrors.Persistence("create", err)
	}
	return nil
}

func (s *MongoTransactionStore) UpsertByCheckoutID(ctx context.Context, checkoutRequestID string, patch models.TransactionPatch) (*models.Transaction, error) {
	now := s.now()
	set := bson.M{"updated_at": now}
	insert := bson.M{
		"created_at":      now,
		"payer_phone":     "",
		"recipient_phone": "",
	}

	if patch.PayerPhone != nil {
		insert["payer_phone"] = *patch.PayerPhone
		insert["recipient_phone"] = *patch.PayerPhone
	}
	if patch.MerchantRequestID != nil {
		set["merchant_request_id"] = *patch.MerchantRequestID
	} else {
		insert["merchant_request_id"] = ""
	}
	if patch.ResultCode != nil {
		set["result_code"] = *patch.ResultCode
		set["status"] = models.StatusFor(*patch.ResultCode)
	} else {
		insert["result_code"] = nil
		insert["status"] = models.StatusPending
	}
	if patch.ResultDescription != nil {
		set["result_description"] = *patch.ResultDescription
	} else {
		insert["result_description"] = ""
	}

	amount := decimal.Zero
	if patch.Amount != nil {
		amount = *patch.Amount
	}
	dec, err := primitive.ParseDecimal128(amount.String())
	if err != nil {
		return nil, apperrors.Persistence("upsert", err)
	}
	if patch.Amount != nil {
		set["amount"] = dec
	} else {
		insert["amount"] = dec
	}

	if patch.ReceiptNumber != nil {
		set["receipt_number"] = *patch.ReceiptNumber
	} else {
		insert["receipt_number"] = nil
	}
	if patch.TransactionTimestamp != nil {
		set["transaction_timestamp"] = *patch.TransactionTimestamp
	} else {
		insert["transaction_timestamp"] = nil
	}
	if patch.RawCallbackPayload != nil {
		raw, err := jsonToBSON(patch.RawCallbackPayload)
		if err != nil {
			return nil, apperrors.Persistence("upsert", err)
		}
		set["raw_callback_payload"] = raw
	}

	_, err = s.Collection.UpdateOne(ctx,
		bson.M{"_id": checkoutRequestID},
		bson.M{"$set": set, "$setOnInsert": insert},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, apperrors.Persistence("upsert", err)
	}

	stored, err := s.FindByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, apperrors.Persistence("upsert", err)
	}
	return stored, nil
}

func (s *MongoTransactionStore) MergeInitiation(ctx context.Context, trx *models.Transaction) error {
	amount, err := primitive.ParseDecimal128(trx.Amount.String())
	if err != nil {
		return apperrors.Persistence("merge", err)
	}

	// Pipeline form so amount and merchant id can be filled conditionally.
	update := mongo.Pipeline{bson.D{{Key: "$set", Value: bson.D{
		{Key: "payer_phone", Value: literal(trx.PayerPhone)},
		{Key: "recipient_phone", Value: literal(trx.RecipientPhone)},
		{Key: "merchant_request_id", Value: fillEmpty("$merchant_request_id", "", literal(trx.MerchantRequestID))},
		{Key: "amount", Value: fillEmpty("$amount", 0, amount)},
		{Key: "updated_at", Value: s.now()},
	}}}}

	if _, err := s.Collection.UpdateOne(ctx, bson.M{"_id": trx.CheckoutRequestID}, update); err != nil {
		return apperrors.Persistence("merge", err)
	}
	return nil
}

func literal(v interface{}) bson.M {
	return bson.M{"$literal": v}
}

func fillEmpty(field string, empty, value interface{}) bson.M {
	return bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{field, empty}}, value, field}}
}

func (s *MongoTransactionStore) FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Transaction, error) {
	var doc transactionDocument
	err := s.Collection.FindOne(ctx, bson.M{"_id": checkoutRequestID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Persistence("find", err)
	}
	return fromDocument(doc)
}

func (s *MongoTransactionStore) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(ClampLimit(limit)))
	return s.find(ctx, "list", bson.M{}, opts)
}

func (s *MongoTransactionStore) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	filter := bson.M{
		"status":     models.StatusPending,
		"created_at": bson.M{"$lt": createdBefore},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(ClampLimit(limit)))
	return s.find(ctx, "list pending", filter, opts)
}

func (s *MongoTransactionStore) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]models.Transaction, error) {
	cursor, err := s.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	defer cursor.Close(ctx)

	var docs []transactionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperrors.Persistence(op, err)
	}

	transactions := make([]models.Transaction, 0, len(docs))
	for _, doc := range docs {
		trx, err := fromDocument(doc)
		if err != nil {
			return nil, apperrors.Persistence(op, err)
		}
		transactions = append(transactions, *trx)
	}
	return transactions, nil
}

func toDocument(trx *models.Transaction) (transactionDocument, error) {
	amount, err := primitive.ParseDecimal128(trx.Amount.String())
	if err != nil {
		return transactionDocument{}, err
	}
	doc := transactionDocument{
		CheckoutRequestID:    trx.CheckoutRequestID,
		MerchantRequestID:    trx.MerchantRequestID,
		Status:               trx.Status,
		ResultCode:           trx.ResultCode,
		ResultDescription:    trx.ResultDescription,
		Amount:               amount,
		ReceiptNumber:        trx.ReceiptNumber,
		TransactionTimestamp: trx.TransactionTimestamp,
		PayerPhone:           trx.PayerPhone,
		RecipientPhone:       trx.RecipientPhone,
		CreatedAt:            trx.CreatedAt,
		UpdatedAt:            trx.UpdatedAt,
	}
	if len(trx.RawCallbackPayload) > 0 {
		if doc.RawCallbackPayload, err = jsonToBSON(trx.RawCallbackPayload); err != nil {
			return transactionDocument{}, err
		}
	}
	return doc, nil
}

func fromDocument(doc transactionDocument) (*models.Transaction, error) {
	amount, err := decimal.NewFromString(doc.Amount.String())
	if err != nil {
		return nil, err
	}
	trx := &models.Transaction{
		CheckoutRequestID:    doc.CheckoutRequestID,
		MerchantRequestID:    doc.MerchantRequestID,
		Status:               doc.Status,
		ResultCode:           doc.ResultCode,
		ResultDescription:    doc.ResultDescription,
		Amount:               amount,
		ReceiptNumber:        doc.ReceiptNumber,
		TransactionTimestamp: doc.TransactionTimestamp,
		PayerPhone:           doc.PayerPhone,
		RecipientPhone:       doc.RecipientPhone,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
	}
	if len(doc.RawCallbackPayload) > 0 {
		js, err := bson.MarshalExtJSON(doc.RawCallbackPayload, false, false)
		if err != nil {
			return nil, err
		}
		trx.RawCallbackPayload = datatypes.JSON(js)
	}
	return trx, nil
}

func jsonToBSON(js datatypes.JSON) (bson.Raw, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(js, false, &doc); err != nil {
		return nil, err
	}
	return bson.Marshal(doc)
}

type MongoCallbackLogStore struct {
	Collection *mongo.Collection
}

func NewMongoCallbackLogStore(db *mongo.Database) *MongoCallbackLogStore {
	return &MongoCallbackLogStore{Collection: db.Collection("callback_logs")}
}

func (s *MongoCallbackLogStore) Append(ctx context.Context, entry *models.CallbackLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.Collection.InsertOne(ctx, bson.M{
		"request":             entry.Request,
		"response":            entry.Response,
		"status":              entry.Status,
		"request_type":        entry.RequestType,
		"checkout_request_id": entry.CheckoutRequestID,
		"created_at":          entry.CreatedAt,
	})
	return err
}
