package grid

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultStateTable SQLStore 默认表名
const DefaultStateTable = "bucket_states"

// StateRecord 状态表的一行
type StateRecord struct {
	BucketKey string    `gorm:"column:bucket_key;primaryKey;size:191"`
	State     []byte    `gorm:"column:state;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// SQLStore 悲观锁存储：事务内 SELECT ... FOR UPDATE 后更新。
// sqlite 没有行锁，依赖库级写锁。
type SQLStore struct {
	db    *gorm.DB
	table string
}

func NewSQLStore(db *gorm.DB, table string) *SQLStore {
	if table == "" {
		table = DefaultStateTable
	}
	return &SQLStore{db: db, table: table}
}

// AutoMigrate 创建状态表
func (s *SQLStore) AutoMigrate() error {
	return s.db.Table(s.table).AutoMigrate(&StateRecord{})
}

// errNoWrite 回滚占位行
var errNoWrite = errors.New("grid: processor wrote nothing")

// Execute 行不存在时先插入空占位行再加锁，并发的恢复在同一行锁上排队。
// 空状态等同于不存在。
func (s *SQLStore) Execute(ctx context.Context, key string, p Processor) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockRow(tx, key)
		if err != nil {
			return err
		}
		if len(current) == 0 {
			current = nil
		}

		next, write, err := p.Process(current)
		if err != nil {
			return err
		}
		if !write {
			return errNoWrite
		}

		return tx.Table(s.table).
			Where("bucket_key = ?", key).
			Updates(map[string]interface{}{"state": next, "updated_at": time.Now()}).Error
	})
	if errors.Is(err, errNoWrite) {
		return nil
	}
	return err
}

// lockRow SELECT ... FOR UPDATE，行不存在时先 INSERT 占位行
// 不存在的行上 FOR UPDATE 锁不住任何东西（MySQL 只拿间隙锁，并发插入会死锁），
// 所以先用普通读判断，再插入占位行后加锁。
func (s *SQLStore) lockRow(tx *gorm.DB, key string) ([]byte, error) {
	var existing StateRecord
	err := tx.Table(s.table).Select("bucket_key").Where("bucket_key = ?", key).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.insertPlaceholder(tx, key); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		var record StateRecord
		err := tx.Table(s.table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("bucket_key = ?", key).
			Take(&record).Error
		if err == nil {
			return record.State, nil
		}
		// 普通读之后行被删除
		if !errors.Is(err, gorm.ErrRecordNotFound) || attempt > 0 {
			return nil, err
		}
		if err := s.insertPlaceholder(tx, key); err != nil {
			return nil, err
		}
	}
}

func (s *SQLStore) insertPlaceholder(tx *gorm.DB, key string) error {
	return tx.Table(s.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&StateRecord{BucketKey: key, State: []byte{}, UpdatedAt: time.Now()}).Error
}

func (s *SQLStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	return s.db.WithContext(ctx).Table(s.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&StateRecord{BucketKey: key, State: value, UpdatedAt: time.Now()}).Error
}

// Delete 删除 key 对应的行
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Table(s.table).Where("bucket_key = ?", key).Delete(&StateRecord{}).Error
}
