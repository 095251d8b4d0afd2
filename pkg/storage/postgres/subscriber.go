package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriberStore persists the subscriber list with the same whole-set
// semantics as the JSON file: Save replaces everything in one transaction.
type SubscriberStore struct {
	client *PostgresClient
}

func NewSubscriberStore(client *PostgresClient) *SubscriberStore {
	return &SubscriberStore{client: client}
}

func (s *SubscriberStore) Load(ctx context.Context) ([]string, error) {
	emails := []string{}
	err := s.client.DB.WithContext(ctx).
		Model(&SubscriberRecord{}).
		Order("position ASC").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	return emails, nil
}

func (s *SubscriberStore) Save(ctx context.Context, emails []string) error {
	records := make([]SubscriberRecord, 0, len(emails))
	for i, email := range emails {
		records = append(records, SubscriberRecord{Position: i, Email: email})
	}

	err := s.client.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&SubscriberRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		// exact duplicates keep their first position
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&records).Error
	})
	if err != nil {
		return fmt.Errorf("save subscribers: %w", err)
	}
	return nil
}
