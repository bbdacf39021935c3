package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"serverhub/internal/domain"
)

const (
	DefaultPortRangeStart = 30000
	DefaultPortRangeEnd   = 32767

	defaultActionLimit = 50
)

type ActionRecord struct {
	ID         string `gorm:"primaryKey"`
	RequestID  string
	ServerID   string `gorm:"index"`
	Action     string
	Outcome    string
	Error      string
	StartedAt  time.Time `gorm:"index"`
	FinishedAt *time.Time
}

type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	newLogger := gormlogger.New(
		log.New(os.Stderr, "", log.LstdFlags),
		gormlogger.Config{
			IgnoreRecordNotFoundError: true,
			LogLevel:                  gormlogger.Error,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&ActionRecord{}, &Setting{})
	if err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	store := &GormStore{db: db}

	if err := store.initDefaultSettings(); err != nil {
		return nil, fmt.Errorf("error initializing settings: %w", err)
	}

	return store, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) initDefaultSettings() error {
	defaults := map[string]string{
		"port_range_start": strconv.Itoa(DefaultPortRangeStart),
		"port_range_end":   strconv.Itoa(DefaultPortRangeEnd),
	}

	for key, value := range defaults {
		var setting Setting
		result := s.db.First(&setting, "key = ?", key)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				if err := s.db.Create(&Setting{Key: key, Value: value}).Error; err != nil {
					return err
				}
			} else {
				return result.Error
			}
		}
	}

	return nil
}

func (s *GormStore) SaveAction(rec *domain.ActionRecord) error {
	return s.db.Create(&ActionRecord{
		ID:         rec.ID,
		RequestID:  rec.RequestID,
		ServerID:   rec.ServerID,
		Action:     string(rec.Action),
		Outcome:    string(rec.Outcome),
		Error:      rec.Error,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}).Error
}

func (s *GormStore) FinishAction(id string, outcome domain.Outcome, errText string) error {
	result := s.db.Model(&ActionRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"outcome":     string(outcome),
		"error":       errText,
		"finished_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("action record not found: %s", id)
	}
	return nil
}

// ListActions returns the newest records first. An empty serverID lists
// every server.
func (s *GormStore) ListActions(serverID string, limit int) ([]domain.ActionRecord, error) {
	if limit <= 0 {
		limit = defaultActionLimit
	}

	query := s.db.Order("started_at desc").Limit(limit)
	if serverID != "" {
		query = query.Where("server_id = ?", serverID)
	}

	var rows []ActionRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]domain.ActionRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, domain.ActionRecord{
			ID:         r.ID,
			RequestID:  r.RequestID,
			ServerID:   r.ServerID,
			Action:     domain.Action(r.Action),
			Outcome:    domain.Outcome(r.Outcome),
			Error:      r.Error,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		})
	}
	return records, nil
}

func (s *GormStore) GetSetting(key string) (string, error) {
	var setting Setting
	result := s.db.First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("setting not found: %s", key)
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStore) SetSetting(key string, value string) error {
	var setting Setting
	result := s.db.First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return s.db.Create(&Setting{Key: key, Value: value}).Error
		}
		return result.Error
	}

	return s.db.Model(&setting).Update("value", value).Error
}

func (s *GormStore) GetPortRange() (int, int, error) {
	startStr, err := s.GetSetting("port_range_start")
	if err != nil {
		return 0, 0, err
	}

	endStr, err := s.GetSetting("port_range_end")
	if err != nil {
		return 0, 0, err
	}

	start, err := strconv.Atoi(startStr)
	if err != nil {
		return 0, 0, fmt.Errorf("error parsing port_range_start: %w", err)
	}

	end, err := strconv.Atoi(endStr)
	if err != nil {
		return 0, 0, fmt.Errorf("error parsing port_range_end: %w", err)
	}

	return start, end, nil
}

func (s *GormStore) SetPortRange(start int, end int) error {
	if start <= 0 || end <= 0 || start > end || end > 65535 {
		return fmt.Errorf("invalid port range: %d-%d", start, end)
	}

	if err := s.SetSetting("port_range_start", strconv.Itoa(start)); err != nil {
		return err
	}

	return s.SetSetting("port_range_end", strconv.Itoa(end))
}
