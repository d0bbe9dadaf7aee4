package dump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FileName is the database file created inside the dump directory.
const FileName = "dumps.sqlite"

var ErrTraceNotFound = errors.New("trace not found")

// Trace kinds.
const (
	KindGoal    = "goal"
	KindEpisode = "episode"
)

// Trace is one persisted dump: the frames around a goal or a whole episode.
type Trace struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Instance string         `json:"instance" gorm:"size:64;index:idx_dump_trace_instance"`
	Episode  int            `json:"episode"`
	Kind     string         `json:"kind" gorm:"size:16"`
	Scenario string         `json:"scenario" gorm:"size:64"`
	Seed     int64          `json:"seed"`
	Score    datatypes.JSON `json:"score"`

	Frames []Frame `json:"frames,omitempty" gorm:"foreignKey:TraceID;constraint:OnDelete:CASCADE"`
}

func (*Trace) TableName() string { return "dump_traces" }

// Frame is one recorded environment step.
type Frame struct {
	ID          uint           `json:"-" gorm:"primaryKey"`
	TraceID     uint           `json:"trace_id" gorm:"index:idx_dump_frame_trace"`
	Step        int            `json:"step"`
	Actions     datatypes.JSON `json:"actions"`
	Rewards     datatypes.JSON `json:"rewards"`
	Observation datatypes.JSON `json:"observation"`
}

func (*Frame) TableName() string { return "dump_frames" }

// Store persists traces in a SQLite database.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the dump database in dir. An empty dir keeps the
// database in memory, which only lives as long as the Store.
func Open(dir string) (*Store, error) {
	path := ":memory:"
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dump dir: %w", err)
		}
		path = filepath.Join(dir, FileName)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open dump database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// every connection to :memory: would see its own empty database
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if err := db.AutoMigrate(&Trace{}, &Frame{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate dump schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts the trace together with its frames.
func (s *Store) Save(ctx context.Context, t *Trace) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(t).Error
	})
}

// Traces lists the traces of an instance, oldest first, without frames. An
// empty instance lists every trace.
func (s *Store) Traces(ctx context.Context, instance string) ([]Trace, error) {
	q := s.db.WithContext(ctx).Order("id")
	if instance != "" {
		q = q.Where("instance = ?", instance)
	}
	var out []Trace
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Trace loads one trace with its frames in step order.
func (s *Store) Trace(ctx context.Context, id uint) (*Trace, error) {
	var t Trace
	err := s.db.WithContext(ctx).
		Preload("Frames", func(db *gorm.DB) *gorm.DB { return db.Order("step") }).
		First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrTraceNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
