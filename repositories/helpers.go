package repositories

import (
	"errors"

	"gorm.io/gorm"
)

func checkAffectedRows(res *gorm.DB, notFoundError error) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundError
	}
	return nil
}

func translateNotFound(err, notFoundError error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError
	}
	return err
}
