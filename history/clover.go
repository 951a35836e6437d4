package history

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

const (
	fieldRecordID  = "record_id"
	fieldCreatedAt = "created_at"
	fieldPayload   = "payload"
)

// CloverStore keeps records in a clover collection. The record body is
// stored as a JSON payload next to the indexed id and timestamp fields so
// numbers round-trip without clover's normalization.
type CloverStore struct {
	db     *clover.DB
	logger types.Logger
	path   string
	state  atomic.Value
}

func NewCloverStore(config *types.HistoryConfig, logger types.Logger) (*CloverStore, error) {
	var db *clover.DB
	var err error

	if config.Path == "" {
		db, err = clover.Open("", clover.InMemoryMode(true))
	} else {
		db, err = clover.Open(config.Path)
	}
	if err != nil {
		return nil, types.WrapError(err, "failed to open history database")
	}

	exists, err := db.HasCollection(Collection)
	if err != nil {
		_ = db.Close()
		return nil, types.WrapError(err, "failed to check collection existence")
	}
	if !exists {
		if err = db.CreateCollection(Collection); err != nil {
			_ = db.Close()
			return nil, types.WrapError(err, "failed to create collection")
		}
	}

	store := &CloverStore{
		db:     db,
		logger: logger,
		path:   config.Path,
	}

	store.state.Store(StateStopped)
	return store, nil
}

func (c *CloverStore) Start() error {
	if !c.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServiceIsRunning
	}

	c.logger.Debug("Clover history store opened", zap.String("path", c.path))
	return nil
}

func (c *CloverStore) Stop() error {
	if !c.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServiceIsNotRunning
	}

	if err := c.db.Close(); err != nil {
		return types.WrapError(err, "failed to close history database")
	}

	return nil
}

func (c *CloverStore) IsRunning() bool {
	return c.state.Load().(State) == StateRunning
}

func (c *CloverStore) Save(_ context.Context, record *types.HistoryRecord) error {
	prepareRecord(record)

	payload, err := utils.Marshal(record)
	if err != nil {
		return types.WrapError(err, "failed to encode history record")
	}

	doc := clover.NewDocument()
	doc.Set(fieldRecordID, record.ID)
	doc.Set(fieldCreatedAt, record.CreatedAt.UnixNano())
	doc.Set(fieldPayload, string(payload))

	if _, err = c.db.InsertOne(Collection, doc); err != nil {
		return types.WrapError(err, "failed to insert history record")
	}

	return nil
}

func (c *CloverStore) List(_ context.Context, limit int) ([]*types.HistoryRecord, error) {
	docs, err := c.db.Query(Collection).
		Sort(clover.SortOption{Field: fieldCreatedAt, Direction: -1}).
		Limit(NormalizeLimit(limit)).
		FindAll()
	if err != nil {
		return nil, types.WrapError(err, "failed to list history records")
	}

	records := make([]*types.HistoryRecord, 0, len(docs))
	for _, doc := range docs {
		record, err := decodeDocument(doc)
		if err != nil {
			c.logger.Warn("Skipping unreadable history record", zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

func (c *CloverStore) Get(_ context.Context, id string) (*types.HistoryRecord, error) {
	doc, err := c.db.Query(Collection).Where(clover.Field(fieldRecordID).Eq(id)).FindFirst()
	if err != nil {
		return nil, types.WrapError(err, "failed to read history record")
	}
	if doc == nil {
		return nil, types.Errorf(types.ErrHistoryNotFound, "id: %s", id)
	}

	return decodeDocument(doc)
}

func (c *CloverStore) Delete(_ context.Context, id string) error {
	query := c.db.Query(Collection).Where(clover.Field(fieldRecordID).Eq(id))

	count, err := query.Count()
	if err != nil {
		return types.WrapError(err, "failed to count matching records")
	}
	if count == 0 {
		return types.Errorf(types.ErrHistoryNotFound, "id: %s", id)
	}

	if err = query.Delete(); err != nil {
		return types.WrapError(err, "failed to delete history record")
	}

	return nil
}

func (c *CloverStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	query := c.db.Query(Collection).Where(clover.Field(fieldCreatedAt).Lt(cutoff.UnixNano()))

	count, err := query.Count()
	if err != nil {
		return 0, types.WrapError(err, "failed to count expired records")
	}
	if count == 0 {
		return 0, nil
	}

	if err = query.Delete(); err != nil {
		return 0, types.WrapError(err, "failed to delete expired records")
	}

	return count, nil
}

func (c *CloverStore) Count(_ context.Context) (int, error) {
	count, err := c.db.Query(Collection).Count()
	if err != nil {
		return 0, types.WrapError(err, "failed to count history records")
	}
	return count, nil
}

func decodeDocument(doc *clover.Document) (*types.HistoryRecord, error) {
	payload, ok := doc.Get(fieldPayload).(string)
	if !ok {
		return nil, types.Errorf(types.ErrInternalError, "history document %s has no payload", doc.ObjectId())
	}

	record := &types.HistoryRecord{}
	if err := utils.Unmarshal([]byte(payload), record); err != nil {
		return nil, types.WrapError(err, "failed to decode history record")
	}

	return record, nil
}
