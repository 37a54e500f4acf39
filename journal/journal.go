package journal

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"solation/core/events"
	"solation/core/types"
)

var (
	// ErrUnsupportedDriver is returned by Open for unknown database drivers.
	ErrUnsupportedDriver = errors.New("journal: unsupported driver")
	// ErrChainBroken is returned by Verify when a record does not link to its
	// predecessor.
	ErrChainBroken = errors.New("journal: digest chain broken")
)

// Record is one persisted event. Digest commits to the record contents and to
// the digest of the previous record, so rewriting history breaks the chain.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"index;not null"`
	IntentID   *uint64   `gorm:"index"`
	PositionID *uint64   `gorm:"index"`
	Attributes string    `gorm:"type:text;not null"`
	PrevDigest string
	Digest     string    `gorm:"uniqueIndex;not null"`
	CreatedAt  time.Time `gorm:"index"`
}

func (Record) TableName() string { return "journal_records" }

// Attrs decodes the stored attribute map.
func (r *Record) Attrs() (map[string]string, error) {
	out := map[string]string{}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Config selects the backing database.
type Config struct {
	Driver string
	DSN    string
}

// Journal indexes emitted events in a relational store.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time

	mu   sync.Mutex
	seq  uint64
	head string
}

// Open connects to SQLite or Postgres and migrates the schema.
func Open(cfg Config) (*Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", cfg.Driver, err)
	}
	return New(db)
}

// New wraps an existing connection, migrating the schema and loading the
// chain head.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: nil database")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	j := &Journal{db: db, logger: slog.Default(), nowFn: time.Now}
	var last Record
	err := db.Order("sequence DESC").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("journal: load head: %w", err)
	}
	j.seq = last.Sequence
	j.head = last.Digest
	return j, nil
}

func (j *Journal) SetLogger(l *slog.Logger) {
	if l != nil {
		j.logger = l
	}
}

// SetNowFunc overrides the clock stamped on new records.
func (j *Journal) SetNowFunc(now func() time.Time) {
	if now != nil {
		j.nowFn = now
	}
}

// Emit implements events.Emitter. Persistence failures are logged; the
// originating operation has already committed.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil || evt.Event() == nil {
		return
	}
	if _, err := j.Append(context.Background(), evt.Event()); err != nil {
		j.logger.Error("journal append failed", "type", evt.EventType(), "error", err)
	}
}

// Append persists evt as the next record of the chain.
func (j *Journal) Append(ctx context.Context, evt *types.Event) (*Record, error) {
	if evt == nil {
		return nil, errors.New("journal: nil event")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rec := &Record{
		ID:         uuid.New(),
		Sequence:   j.seq + 1,
		Type:       evt.Type,
		IntentID:   parseID(attrs["intentId"]),
		PositionID: parseID(attrs["positionId"]),
		Attributes: string(encoded),
		PrevDigest: j.head,
		CreatedAt:  j.nowFn().UTC().Truncate(time.Millisecond),
	}
	rec.Digest = digest(rec)
	if err := j.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("journal: insert: %w", err)
	}
	j.seq = rec.Sequence
	j.head = rec.Digest
	return rec, nil
}

func parseID(raw string) *uint64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func digest(r *Record) string {
	h := blake3.New(32, nil)
	h.Write([]byte(r.PrevDigest))
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], r.Sequence)
	binary.LittleEndian.PutUint64(buf[8:], uint64(r.CreatedAt.UnixMilli()))
	h.Write(buf[:])
	h.Write([]byte(r.Type))
	h.Write([]byte{0})
	h.Write([]byte(r.Attributes))
	return hex.EncodeToString(h.Sum(nil))
}

// Head returns the sequence and digest of the newest record.
func (j *Journal) Head() (uint64, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq, j.head
}

// ListByIntent returns every record referencing the intent, oldest first.
func (j *Journal) ListByIntent(ctx context.Context, intentID uint64) ([]Record, error) {
	var out []Record
	err := j.db.WithContext(ctx).Where("intent_id = ?", intentID).Order("sequence ASC").Find(&out).Error
	return out, err
}

// ListByPosition returns every record referencing the position, oldest first.
func (j *Journal) ListByPosition(ctx context.Context, positionID uint64) ([]Record, error) {
	var out []Record
	err := j.db.WithContext(ctx).Where("position_id = ?", positionID).Order("sequence ASC").Find(&out).Error
	return out, err
}

// ListByType returns up to limit records of eventType, newest first. A
// non-positive limit returns every match.
func (j *Journal) ListByType(ctx context.Context, eventType string, limit int) ([]Record, error) {
	var out []Record
	q := j.db.WithContext(ctx).Where("type = ?", eventType).Order("sequence DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// Since returns up to limit records with a sequence greater than after.
func (j *Journal) Since(ctx context.Context, after uint64, limit int) ([]Record, error) {
	var out []Record
	q := j.db.WithContext(ctx).Where("sequence > ?", after).Order("sequence ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// Verify walks the whole chain and recomputes every digest.
func (j *Journal) Verify(ctx context.Context) error {
	const page = 500
	var (
		prev  string
		after uint64
	)
	for {
		batch, err := j.Since(ctx, after, page)
		if err != nil {
			return err
		}
		for i := range batch {
			rec := &batch[i]
			if rec.Sequence != after+1 {
				return fmt.Errorf("%w: gap before sequence %d", ErrChainBroken, rec.Sequence)
			}
			if rec.PrevDigest != prev || digest(rec) != rec.Digest {
				return fmt.Errorf("%w: at sequence %d", ErrChainBroken, rec.Sequence)
			}
			prev = rec.Digest
			after = rec.Sequence
		}
		if len(batch) < page {
			return nil
		}
	}
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
