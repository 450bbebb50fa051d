package db

import (
	"gorm.io/gorm"

	"github.com/pharrrodev/type2lyfe-sub001/internal/models"
)

type MedicationRepository struct {
	database *gorm.DB
}

func NewMedicationRepository(database *gorm.DB) *MedicationRepository {
	return &MedicationRepository{database: database}
}

func (repo *MedicationRepository) ListByUser(userID uint) ([]models.Medication, error) {
	medications := make([]models.Medication, 0)
	if err := repo.database.
		Where("user_id = ?", userID).
		Order("lower(name) ASC, id ASC").
		Find(&medications).Error; err != nil {
		return nil, err
	}
	return medications, nil
}

func (repo *MedicationRepository) ExistsByName(userID uint, name string) (bool, error) {
	var matched int64
	if err := repo.database.Model(&models.Medication{}).
		Where("user_id = ? AND lower(trim(name)) = lower(trim(?))", userID, name).
		Count(&matched).Error; err != nil {
		return false, err
	}
	return matched > 0, nil
}

func (repo *MedicationRepository) Create(medication *models.Medication) error {
	return repo.database.Create(medication).Error
}

// DeleteByUserAndID reports whether a row owned by userID was removed.
func (repo *MedicationRepository) DeleteByUserAndID(userID uint, medicationID string) (bool, error) {
	result := repo.database.Where("user_id = ? AND id = ?", userID, medicationID).Delete(&models.Medication{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
