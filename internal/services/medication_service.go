package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pharrrodev/type2lyfe-sub001/internal/models"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

const (
	maxMedicationNameLength = 80
	maxMedicationDoseLength = 40
)

var (
	ErrMedicationNameRequired = errors.New("medication name is required")
	ErrMedicationNameTooLong  = errors.New("medication name is too long")
	ErrMedicationDoseTooLong  = errors.New("medication dose is too long")
	ErrMedicationExists       = errors.New("medication already exists")
	ErrMedicationNotFound     = errors.New("medication not found")
)

type MedicationRepository interface {
	ListByUser(userID uint) ([]models.Medication, error)
	ExistsByName(userID uint, name string) (bool, error)
	Create(medication *models.Medication) error
	DeleteByUserAndID(userID uint, medicationID string) (bool, error)
}

type MedicationService struct {
	medications MedicationRepository
	now         func() time.Time
}

func NewMedicationService(medications MedicationRepository) *MedicationService {
	return &MedicationService{medications: medications, now: time.Now}
}

func (service *MedicationService) List(userID uint) ([]record.Medication, error) {
	stored, err := service.medications.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	medications := make([]record.Medication, 0, len(stored))
	for _, medication := range stored {
		medications = append(medications, record.Medication{ID: medication.ID, Name: medication.Name, Dose: medication.Dose})
	}
	return medications, nil
}

// Catalog is the user's medication list as used to validate medication logs.
func (service *MedicationService) Catalog(userID uint) (record.Catalog, error) {
	medications, err := service.List(userID)
	if err != nil {
		return record.Catalog{}, err
	}
	return record.NewCatalog(medications), nil
}

func (service *MedicationService) Add(userID uint, nameRaw string, doseRaw string) (record.Medication, error) {
	name := strings.Join(strings.Fields(nameRaw), " ")
	dose := strings.TrimSpace(doseRaw)
	switch {
	case name == "":
		return record.Medication{}, ErrMedicationNameRequired
	case len([]rune(name)) > maxMedicationNameLength:
		return record.Medication{}, ErrMedicationNameTooLong
	case len([]rune(dose)) > maxMedicationDoseLength:
		return record.Medication{}, ErrMedicationDoseTooLong
	}

	exists, err := service.medications.ExistsByName(userID, name)
	if err != nil {
		return record.Medication{}, fmt.Errorf("check medication: %w", err)
	}
	if exists {
		return record.Medication{}, ErrMedicationExists
	}

	now := service.now().UTC()
	medication := models.Medication{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:    userID,
		Name:      name,
		Dose:      dose,
		CreatedAt: now,
	}
	if err := service.medications.Create(&medication); err != nil {
		return record.Medication{}, fmt.Errorf("create medication: %w", err)
	}
	return record.Medication{ID: medication.ID, Name: medication.Name, Dose: medication.Dose}, nil
}

func (service *MedicationService) Delete(userID uint, medicationID string) error {
	removed, err := service.medications.DeleteByUserAndID(userID, strings.TrimSpace(medicationID))
	if err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}
	if !removed {
		return ErrMedicationNotFound
	}
	return nil
}
