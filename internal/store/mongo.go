// Package store implements the signaling store over the shared document
// database. Signaling rows are append-mostly: call records are write-once
// and the rendezvous row is updated at most once (status -> ended).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/rizwanabdullah11/taskcall/internal/domain"
)

// Collection names shared with the task-management clients.
const (
	CollectionCalls       = "calls"
	CollectionActiveCalls = "activeCalls"
	CollectionTasks       = "tasks"
)

const defaultPollInterval = 500 * time.Millisecond

// Mongo is the document-store signaling client. It implements
// domain.SignalStore and domain.TaskDirectory.
type Mongo struct {
	client       *mongo.Client
	db           *mongo.Database
	log          *logrus.Entry
	pollInterval time.Duration
}

// NewMongo connects, verifies the connection, and ensures the indexes the
// signaling queries rely on.
func NewMongo(ctx context.Context, uri, dbName string, log *logrus.Logger) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	m := &Mongo{
		client:       client,
		db:           client.Database(dbName),
		log:          log.WithField("component", "store"),
		pollInterval: defaultPollInterval,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return m, nil
}

// ensureIndexes backs the equality queries and enforces code uniqueness at
// write time: at most one pending rendezvous row per code.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	calls := m.db.Collection(CollectionCalls)
	_, err := calls.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "code", Value: 1}, {Key: "type", Value: 1}},
	})
	if err != nil {
		return err
	}

	active := m.db.Collection(CollectionActiveCalls)
	_, err = active.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "code", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": domain.CallPending}),
	})
	return err
}

// Close disconnects from the database.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) CreateCallRecord(ctx context.Context, rec *domain.CallRecord) (string, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	res, err := m.db.Collection(CollectionCalls).InsertOne(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("insert call record: %w", err)
	}
	return insertedID(res), nil
}

// FindOffer returns the first offer written for code. Duplicate offers for
// the same code are ignored by taking the earliest match only.
func (m *Mongo) FindOffer(ctx context.Context, code string) (*domain.CallRecord, error) {
	filter := bson.M{"code": code, "type": domain.SignalOffer}
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	var rec domain.CallRecord
	err := m.db.Collection(CollectionCalls).FindOne(ctx, filter, opts).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find offer: %w", err)
	}
	return &rec, nil
}

func (m *Mongo) CreateActiveCall(ctx context.Context, sess *domain.ActiveCallSession) (string, error) {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	res, err := m.db.Collection(CollectionActiveCalls).InsertOne(ctx, sess)
	if mongo.IsDuplicateKeyError(err) {
		return "", domain.ErrCodeTaken
	}
	if err != nil {
		return "", fmt.Errorf("insert active call: %w", err)
	}
	return insertedID(res), nil
}

func (m *Mongo) SetReceiver(ctx context.Context, code, userID string) error {
	_, err := m.db.Collection(CollectionActiveCalls).UpdateMany(ctx,
		bson.M{"code": code},
		bson.M{"$set": bson.M{"receiver": userID}},
	)
	if err != nil {
		return fmt.Errorf("set receiver: %w", err)
	}
	return nil
}

// EndActiveCall writes the terminal status. Both parties may end; $min
// keeps the earliest endedAt so a second writer never moves the timestamp.
func (m *Mongo) EndActiveCall(ctx context.Context, code string, endedAt time.Time) error {
	_, err := m.db.Collection(CollectionActiveCalls).UpdateMany(ctx,
		bson.M{"code": code},
		bson.M{
			"$set": bson.M{"status": domain.CallEnded},
			"$min": bson.M{"endedAt": endedAt.UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("end active call: %w", err)
	}
	return nil
}

func (m *Mongo) SubscribeAnswers(ctx context.Context, code string, fn func(domain.CallRecord)) (domain.Unsubscribe, error) {
	filter := bson.M{"code": code, "type": domain.SignalAnswer}
	return m.subscribe(ctx, CollectionCalls, filter, func(doc bson.Raw) {
		var rec domain.CallRecord
		if err := bson.Unmarshal(doc, &rec); err != nil {
			m.log.WithError(err).Warn("decode answer record")
			return
		}
		fn(rec)
	})
}

func (m *Mongo) SubscribeStatus(ctx context.Context, code string, fn func(domain.ActiveCallSession)) (domain.Unsubscribe, error) {
	filter := bson.M{"code": code}
	return m.subscribe(ctx, CollectionActiveCalls, filter, func(doc bson.Raw) {
		var sess domain.ActiveCallSession
		if err := bson.Unmarshal(doc, &sess); err != nil {
			m.log.WithError(err).Warn("decode active call")
			return
		}
		fn(sess)
	})
}

func (m *Mongo) FindTask(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := m.db.Collection(CollectionTasks).FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// subscribe starts a change-stream watch on the filtered collection and
// falls back to polling when change streams are unavailable (standalone
// servers). Either way delivery is at-least-once: the full matching set is
// replayed, so consumers must be idempotent against duplicates.
func (m *Mongo) subscribe(ctx context.Context, coll string, filter bson.M, deliver func(bson.Raw)) (domain.Unsubscribe, error) {
	sctx, cancel := context.WithCancel(ctx)
	go m.watchLoop(sctx, coll, filter, deliver)
	return domain.Unsubscribe(cancel), nil
}

func (m *Mongo) watchLoop(ctx context.Context, coll string, filter bson.M, deliver func(bson.Raw)) {
	c := m.db.Collection(coll)

	match := bson.M{}
	for k, v := range filter {
		match["fullDocument."+k] = v
	}
	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	cs, err := c.Watch(ctx, pipeline, opts)
	if err != nil {
		m.log.WithError(err).Debug("change streams unavailable, polling instead")
		m.pollLoop(ctx, c, filter, deliver)
		return
	}
	defer cs.Close(context.Background())

	// Replay the current matching set first, snapshot-listener style, so a
	// record written before the watch started is not missed.
	m.deliverCurrent(ctx, c, filter, deliver)

	for cs.Next(ctx) {
		var ev struct {
			FullDocument bson.Raw `bson:"fullDocument"`
		}
		if err := cs.Decode(&ev); err != nil {
			m.log.WithError(err).Warn("decode change event")
			continue
		}
		if ev.FullDocument != nil {
			deliver(ev.FullDocument)
		}
	}
	if err := cs.Err(); err != nil && ctx.Err() == nil {
		m.log.WithError(err).Warn("change stream closed, polling instead")
		m.pollLoop(ctx, c, filter, deliver)
	}
}

func (m *Mongo) pollLoop(ctx context.Context, c *mongo.Collection, filter bson.M, deliver func(bson.Raw)) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.deliverCurrent(ctx, c, filter, deliver)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.deliverCurrent(ctx, c, filter, deliver)
		}
	}
}

func (m *Mongo) deliverCurrent(ctx context.Context, c *mongo.Collection, filter bson.M, deliver func(bson.Raw)) {
	cursor, err := c.Find(ctx, filter)
	if err != nil {
		if ctx.Err() == nil {
			m.log.WithError(err).Warn("subscription query")
		}
		return
	}
	defer cursor.Close(context.Background())
	for cursor.Next(ctx) {
		doc := make(bson.Raw, len(cursor.Current))
		copy(doc, cursor.Current)
		deliver(doc)
	}
}

func insertedID(res *mongo.InsertOneResult) string {
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprintf("%v", res.InsertedID)
}
